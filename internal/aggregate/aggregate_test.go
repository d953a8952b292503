package aggregate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"stripd/internal/archive"
	"stripd/internal/dateutil"
	"stripd/internal/extract"
	"stripd/internal/fetch"
	"stripd/internal/strips"
)

// fakeFetcher serves canned responses and records every request. Run
// fetches from worker goroutines, so access is locked.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string][]byte
	urls     []string
	referers map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, referer string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.referers == nil {
		f.referers = make(map[string]string)
	}
	f.referers[url] = referer
	if b, ok := f.pages[url]; ok {
		return b, nil
	}
	return nil, &fetch.FetchError{URL: url, Status: 404}
}

func (f *fakeFetcher) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 128, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func testRegistry(t *testing.T) *strips.Registry {
	t.Helper()
	reg, err := strips.Load([]byte(`
strips:
  - key: good
    name: Good Comic
    homepage: http://good.example/
    patterns:
      - name: main_strip
        pattern: 'src="(?P<result>[^"]+\.png)"'
      - name: title_text
        kind: text
        pattern: 'title="(?P<result>[^"]+)"'
  - key: down
    name: Down Comic
    homepage: http://down.example/
    patterns:
      - name: main_strip
        pattern: 'src="(?P<result>[^"]+)"'
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

func newRunner(reg *strips.Registry, ff *fakeFetcher, store *archive.Store) *Runner {
	return &Runner{
		Registry: reg,
		Fetcher:  ff,
		Chain:    extract.NewChain(ff, nil),
		Store:    store,
		Resolver: dateutil.NewResolver(),
		Workers:  2,
	}
}

func TestRunListMode(t *testing.T) {
	reg := testRegistry(t)
	ff := &fakeFetcher{pages: map[string][]byte{
		"http://good.example/": []byte(`<img src="a.png" title="hi">`),
	}}
	r := newRunner(reg, ff, nil)

	outcomes, err := r.Run(context.Background(), []string{"good", "down"}, "2025-06-21", ModeList)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}

	// Request order is preserved regardless of worker scheduling.
	if outcomes[0].Key != "good" || outcomes[1].Key != "down" {
		t.Errorf("order = %s, %s", outcomes[0].Key, outcomes[1].Key)
	}

	good := outcomes[0]
	if good.Err != nil {
		t.Fatalf("good failed: %v", good.Err)
	}
	if len(good.Results) != 2 {
		t.Fatalf("good results = %d", len(good.Results))
	}
	if good.Results[0].Value != "http://good.example/a.png" {
		t.Errorf("image value = %q", good.Results[0].Value)
	}
	if good.Entry != nil {
		t.Error("list mode must not commit")
	}

	var fe *fetch.FetchError
	if !errors.As(outcomes[1].Err, &fe) {
		t.Errorf("down should carry a FetchError, got %v", outcomes[1].Err)
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	started  map[string]int
	done     int
	finished []string
}

func (r *recordingReporter) SourceStarted(key string, artifacts int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started == nil {
		r.started = make(map[string]int)
	}
	r.started[key] = artifacts
}

func (r *recordingReporter) ArtifactDone(string, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
}

func (r *recordingReporter) SourceFinished(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, key)
}

func TestRunDownloadCommits(t *testing.T) {
	reg := testRegistry(t)
	img := testPNG(t)
	ff := &fakeFetcher{pages: map[string][]byte{
		"http://good.example/":      []byte(`<img src="a.png" title="hover">`),
		"http://good.example/a.png": img,
	}}
	store := archive.NewStore(t.TempDir(), nil)
	rep := &recordingReporter{}
	r := newRunner(reg, ff, store)
	r.Reporter = rep

	outcomes, err := r.Run(context.Background(), []string{"good"}, "2025-06-21", ModeDownload)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := outcomes[0]
	if out.Err != nil {
		t.Fatalf("outcome: %v", out.Err)
	}
	if out.Bytes != int64(len(img)) {
		t.Errorf("Bytes = %d, want %d", out.Bytes, len(img))
	}

	if out.Entry == nil {
		t.Fatal("no entry committed")
	}
	if a := out.Entry.Artifact("main_strip"); a == nil || a.File != "2025-06-21-main_strip.png" {
		t.Errorf("image artifact = %+v", a)
	}
	if a := out.Entry.Artifact("title_text"); a == nil || a.Text != "hover" {
		t.Errorf("text artifact = %+v", a)
	}

	// The image request carries the search page as referer; the search
	// page itself is fetched without one.
	if got := ff.referers["http://good.example/a.png"]; got != "http://good.example/" {
		t.Errorf("image referer = %q", got)
	}
	if got := ff.referers["http://good.example/"]; got != "" {
		t.Errorf("search page referer = %q", got)
	}

	if store.Latest("good") != "2025-06-21" {
		t.Errorf("latest = %q", store.Latest("good"))
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "good", "2025-06-21-main_strip.png")); err != nil {
		t.Errorf("stored image missing: %v", err)
	}

	if rep.started["good"] != 1 || rep.done != 1 || len(rep.finished) != 1 {
		t.Errorf("reporter saw started=%v done=%d finished=%v", rep.started, rep.done, rep.finished)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	reg := testRegistry(t)
	img := testPNG(t)
	ff := &fakeFetcher{pages: map[string][]byte{
		"http://good.example/":      []byte(`<img src="a.png" title="hi">`),
		"http://good.example/a.png": img,
		// down's search page resolves but its image does not.
		"http://down.example/": []byte(`<img src="gone.png">`),
	}}
	store := archive.NewStore(t.TempDir(), nil)
	r := newRunner(reg, ff, store)

	outcomes, err := r.Run(context.Background(), []string{"down", "good"}, "2025-06-21", ModeDownload)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcomes[0].Err == nil {
		t.Error("down should fail")
	}
	if outcomes[1].Err != nil {
		t.Errorf("good should survive down's failure: %v", outcomes[1].Err)
	}
	if store.Latest("good") != "2025-06-21" {
		t.Error("good was not committed")
	}
	if store.Latest("down") != "" {
		t.Error("failed source must not commit")
	}
}

func TestRunUnknownKeyIsFatal(t *testing.T) {
	reg := testRegistry(t)
	ff := &fakeFetcher{}
	r := newRunner(reg, ff, nil)

	_, err := r.Run(context.Background(), []string{"good", "nope"}, "", ModeList)
	if err == nil {
		t.Fatal("expected error")
	}
	var de *strips.DefinitionError
	if !errors.As(err, &de) {
		t.Fatalf("want *DefinitionError, got %T", err)
	}
	if ff.requests() != 0 {
		t.Errorf("unknown key must fail before any fetch, saw %d", ff.requests())
	}
}

func TestRunBadDateIsFatal(t *testing.T) {
	reg := testRegistry(t)
	ff := &fakeFetcher{}
	r := newRunner(reg, ff, nil)

	_, err := r.Run(context.Background(), []string{"good"}, "not-a-date", ModeList)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *dateutil.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FormatError, got %T", err)
	}
	if ff.requests() != 0 {
		t.Errorf("bad date must fail before any fetch, saw %d", ff.requests())
	}
}

func TestRunExpandsDateTokens(t *testing.T) {
	reg, err := strips.Load([]byte(`
strips:
  - key: dated
    name: Dated Comic
    homepage: http://d.example/
    searchpage: http://d.example/comics/{yyyy}/{mm}/{dd}/
    patterns:
      - name: main_strip
        pattern: 'src="(?P<result>[^"]+)"'
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ff := &fakeFetcher{pages: map[string][]byte{
		"http://d.example/comics/2025/06/21/": []byte(`<img src="a.png">`),
	}}
	r := newRunner(reg, ff, nil)

	outcomes, err := r.Run(context.Background(), []string{"dated"}, "2025-06-21", ModeList)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := outcomes[0]
	if out.Err != nil {
		t.Fatalf("outcome: %v", out.Err)
	}
	if out.SearchURL != "http://d.example/comics/2025/06/21/" {
		t.Errorf("SearchURL = %q", out.SearchURL)
	}
	if out.Results[0].Value != "http://d.example/comics/2025/06/21/a.png" {
		t.Errorf("resolved against expanded base: %q", out.Results[0].Value)
	}
}
