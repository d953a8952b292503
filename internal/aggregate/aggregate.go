// Package aggregate drives the whole pipeline across a set of sources:
// resolve the run date, fetch each search page, run the pattern chain,
// and either surface the extraction results or commit downloaded
// artifacts to the archive. Sources are independent; one failure never
// aborts the others.
package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"stripd/internal/archive"
	"stripd/internal/dateutil"
	"stripd/internal/extract"
	"stripd/internal/fetch"
	"stripd/internal/strips"
	"stripd/internal/ui"
)

// Mode selects what Run does with extraction results.
type Mode int

const (
	// ModeList only extracts and reports.
	ModeList Mode = iota
	// ModeDownload also fetches image artifacts and commits an archive
	// entry per source.
	ModeDownload
)

// Outcome is the per-source result. Err is nil on success; otherwise it
// is one of the typed errors (fetch.FetchError, extract.StepError,
// archive.WriteError) and carries enough identity to diagnose.
type Outcome struct {
	Key       string
	Strip     *strips.Strip
	SearchURL string
	Date      dateutil.ResolvedDate
	Results   extract.Results
	Entry     *archive.Entry
	Bytes     int64
	Err       error
}

// Reporter receives per-source download progress. All methods may be
// called from concurrent goroutines.
type Reporter interface {
	SourceStarted(key string, artifacts int)
	ArtifactDone(key string, bytes int64)
	SourceFinished(key string)
}

// Runner wires the collaborators together for one invocation.
type Runner struct {
	Registry *strips.Registry
	Fetcher  fetch.Fetcher
	Chain    *extract.Chain
	Store    *archive.Store // required in ModeDownload
	Resolver *dateutil.Resolver
	Workers  int
	Log      *ui.Logger
	Reporter Reporter // optional
}

// Run processes keys independently with bounded parallelism and returns
// one outcome per key, in request order. Run-global failures (bad date,
// unknown key) return an error before any network activity.
func (r *Runner) Run(ctx context.Context, keys []string, dateText string, mode Mode) ([]Outcome, error) {
	date, err := r.Resolver.Resolve(dateText)
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if r.Registry.Strip(key) == nil {
			return nil, &strips.DefinitionError{Key: key, Msg: "unknown strip"}
		}
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			outcomes[i] = r.processSource(gctx, key, date, mode)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (r *Runner) processSource(ctx context.Context, key string, date dateutil.ResolvedDate, mode Mode) Outcome {
	def := r.Registry.Strip(key)
	out := Outcome{Key: key, Strip: def, Date: date}

	out.SearchURL = dateutil.Expand(def.SearchPage, date)
	base := dateutil.Expand(def.BaseURL, date)
	if base == "" {
		base = out.SearchURL
	}

	if r.Log != nil {
		r.Log.Debugf("%s: fetching search page %s\n", key, out.SearchURL)
	}

	page, err := r.Fetcher.Fetch(ctx, out.SearchURL, "")
	if err != nil {
		out.Err = err
		return out
	}

	results, err := r.Chain.Extract(ctx, def, page, base)
	if err != nil {
		out.Err = err
		return out
	}
	out.Results = results

	if mode == ModeList {
		return out
	}

	out.Entry, out.Bytes, out.Err = r.download(ctx, def, date, results, out.SearchURL)
	return out
}

// download fetches every image artifact (with the search page as referer)
// and commits the whole set at once.
func (r *Runner) download(
	ctx context.Context,
	def *strips.Strip,
	date dateutil.ResolvedDate,
	results extract.Results,
	referer string,
) (*archive.Entry, int64, error) {

	images := 0
	for _, res := range results {
		if res.Kind == strips.KindImage {
			images++
		}
	}
	if r.Reporter != nil {
		r.Reporter.SourceStarted(def.Key, images)
		defer r.Reporter.SourceFinished(def.Key)
	}

	var total int64
	artifacts := make([]archive.Artifact, 0, len(results))
	for _, res := range results {
		if res.Kind == strips.KindText {
			artifacts = append(artifacts, archive.Artifact{
				Name: res.Name,
				Kind: res.Kind,
				Text: res.Value,
			})
			continue
		}

		data, err := r.Fetcher.Fetch(ctx, res.Value, referer)
		if err != nil {
			return nil, total, err
		}
		total += int64(len(data))
		if r.Reporter != nil {
			r.Reporter.ArtifactDone(def.Key, int64(len(data)))
		}

		artifacts = append(artifacts, archive.Artifact{
			Name: res.Name,
			Kind: res.Kind,
			Data: data,
		})
	}

	entry, err := r.Store.Commit(def.Key, date.ISO(), artifacts)
	if err != nil {
		return nil, total, err
	}
	return entry, total, nil
}
