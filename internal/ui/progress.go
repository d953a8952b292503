package ui

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"stripd/internal/util"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// MPBProgressManager draws one bar per source while artifacts download.
// It satisfies aggregate.Reporter.
type MPBProgressManager struct {
	p    *mpb.Progress
	mu   sync.Mutex
	h    map[string]*ProgressHandle
	once sync.Once
}

func NewProgressManager() *MPBProgressManager {
	p := mpb.New(
		mpb.WithWidth(52),
		mpb.WithOutput(os.Stdout),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	return &MPBProgressManager{p: p, h: map[string]*ProgressHandle{}}
}

// Close waits for all bars to render their final state. Safe to call
// more than once.
func (pm *MPBProgressManager) Close() {
	pm.once.Do(pm.p.Wait)
}

func (pm *MPBProgressManager) Register(key string) *ProgressHandle {
	h := &ProgressHandle{
		pm:     pm,
		prefix: key,
	}
	h.initBar()

	pm.mu.Lock()
	pm.h[key] = h
	pm.mu.Unlock()

	return h
}

func (pm *MPBProgressManager) handle(key string) *ProgressHandle {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.h[key]
}

// SourceStarted, ArtifactDone and SourceFinished are the reporter hooks
// the aggregator drives.

func (pm *MPBProgressManager) SourceStarted(key string, artifacts int) {
	h := pm.Register(key)
	h.SetTotal(artifacts)
}

func (pm *MPBProgressManager) ArtifactDone(key string, bytes int64) {
	if h := pm.handle(key); h != nil {
		h.Advance(bytes)
	}
}

func (pm *MPBProgressManager) SourceFinished(key string) {
	if h := pm.handle(key); h != nil {
		h.MarkDone()
	}
}

type ProgressHandle struct {
	pm     *MPBProgressManager
	prefix string
	bar    *mpb.Bar

	total int64
	done  int64
	bytes int64

	start   time.Time
	elapsed atomic.Int64

	final atomic.Bool
}

func (h *ProgressHandle) initBar() {
	h.start = time.Now()

	h.bar = h.pm.p.New(
		0,
		mpb.BarStyle().Rbound("]"),

		mpb.PrependDecorators(
			decor.Name(h.prefix+"  "),
		),

		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncWidth),
			decor.CountersNoUnit(" | %d/%d files", decor.WCSyncWidth),
			decor.Any(func(_ decor.Statistics) string {
				return " | " + util.Human(atomic.LoadInt64(&h.bytes))
			}),

			decor.Any(func(_ decor.Statistics) string {
				if h.final.Load() {
					sec := h.elapsed.Load()
					return fmt.Sprintf(" | %ds", sec)
				}
				sec := time.Since(h.start).Seconds()

				return fmt.Sprintf(" | %ds", int(sec))
			}),
		),
	)
}

func (h *ProgressHandle) SetTotal(total int) {
	if h.final.Load() {
		return
	}

	atomic.StoreInt64(&h.total, int64(total))
	h.bar.SetTotal(int64(total), false)
}

func (h *ProgressHandle) Advance(bytes int64) {
	if h.final.Load() {
		return
	}

	atomic.AddInt64(&h.bytes, bytes)
	done := atomic.AddInt64(&h.done, 1)
	h.bar.SetCurrent(done)
}

func (h *ProgressHandle) MarkDone() {
	if h.final.Swap(true) {
		return
	}

	elapsedSec := int64(time.Since(h.start).Seconds())

	h.elapsed.Store(elapsedSec)
	total := atomic.LoadInt64(&h.total)
	h.bar.SetCurrent(total)
	h.bar.SetTotal(total, true)
}
