// Package extract walks a strip's pattern steps across one or more fetched
// pages and produces the final artifact URLs and texts. Extraction is
// regex-against-raw-HTML on purpose; sources are described by patterns,
// not selectors.
package extract

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"stripd/internal/fetch"
	"stripd/internal/strips"
)

// Result is one extracted artifact: an absolute image URL or a decoded
// text value, attributable to its originating step.
type Result struct {
	Name  string
	Kind  strips.Kind
	Value string
}

// Results keeps the declared step order.
type Results []Result

// Get returns the result with the given name, or nil.
func (rs Results) Get(name string) *Result {
	for i := range rs {
		if rs[i].Name == name {
			return &rs[i]
		}
	}
	return nil
}

// StepError reports a pattern that did not match. It signals that the
// source's page structure changed (or the comic is absent today); it is
// never retried.
type StepError struct {
	Source  string
	Step    string
	Pattern string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: pattern %q found no match", e.Source, e.Step)
}

type debugLogger interface {
	Debugf(string, ...any)
}

// Chain runs pattern steps. The fetcher is only used for fetch-through
// steps that traverse to a secondary page.
type Chain struct {
	fetcher fetch.Fetcher
	log     debugLogger
}

func NewChain(f fetch.Fetcher, log debugLogger) *Chain {
	return &Chain{fetcher: f, log: log}
}

// Extract applies def's steps in order against page (the fetched search
// page). base is the URL relative captures resolve against; a fetch-through
// step replaces both the current page and the current base, so later steps
// run against the traversed page. Plain steps leave both untouched.
func (c *Chain) Extract(ctx context.Context, def *strips.Strip, page []byte, base string) (Results, error) {
	curPage := page
	curBase := base

	var out Results
	for i := range def.Steps {
		step := &def.Steps[i]
		re := step.Regexp()

		m := re.FindSubmatch(curPage)
		if m == nil {
			return nil, &StepError{Source: def.Key, Step: step.Name, Pattern: step.Pattern}
		}
		raw := string(m[re.SubexpIndex("result")])

		if c.log != nil {
			c.log.Debugf("%s: step %q matched %q\n", def.Key, step.Name, raw)
		}

		if step.Kind == strips.KindText && !step.FetchThrough {
			out = append(out, Result{Name: step.Name, Kind: step.Kind, Value: html.UnescapeString(raw)})
			continue
		}

		resolved := resolveRef(curBase, raw)

		if step.FetchThrough {
			body, err := c.fetcher.Fetch(ctx, resolved, curBase)
			if err != nil {
				return nil, err
			}
			curPage = body
			curBase = resolved
			continue
		}

		out = append(out, Result{Name: step.Name, Kind: step.Kind, Value: resolved})
	}

	return out, nil
}

// resolveRef joins a captured value to the current base using standard
// relative-URL resolution. Absolute captures pass through unchanged.
func resolveRef(base, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.IsAbs() {
		return raw
	}
	b, err := url.Parse(base)
	if err != nil {
		return raw
	}
	return b.ResolveReference(u).String()
}
