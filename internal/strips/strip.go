// Package strips holds the source definitions: which comics exist, where
// their search pages live, and the ordered pattern steps that extract the
// daily artifacts from raw HTML. Definitions are loaded once from a YAML
// file and are immutable afterwards.
package strips

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind says what a pattern step extracts.
type Kind int

const (
	KindImage Kind = iota
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// PatternStep is one extraction stage. Its regex must carry exactly one
// capture group, named "result". A fetch-through step's match is itself
// fetched and becomes the page for the following steps; it produces no
// artifact of its own.
type PatternStep struct {
	Name         string
	Kind         Kind
	Pattern      string
	FetchThrough bool

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Compilation happens at load time,
// so this never fails after a registry has been built.
func (p *PatternStep) Regexp() *regexp.Regexp {
	return p.re
}

func (p *PatternStep) compile() error {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return fmt.Errorf("pattern %q does not compile: %w", p.Name, err)
	}
	if re.NumSubexp() != 1 || re.SubexpIndex("result") != 1 {
		return fmt.Errorf("pattern %q must have exactly one capture group named \"result\"", p.Name)
	}
	p.re = re
	return nil
}

// Strip is one configured comic source.
type Strip struct {
	Key        string
	Name       string
	Artist     string
	Homepage   string
	SearchPage string
	BaseURL    string
	OnHold     bool
	Steps      []PatternStep
}

// ResultNames returns the artifact names this strip produces, in declared
// order, skipping fetch-through steps.
func (s *Strip) ResultNames() []string {
	var names []string
	for _, st := range s.Steps {
		if !st.FetchThrough {
			names = append(names, st.Name)
		}
	}
	return names
}

// Group is a named, ordered set of strip keys.
type Group struct {
	Key  string
	Keys []string
}

var keyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// DefinitionError reports a problem in the definitions file. It is always
// raised at load time, before any network activity.
type DefinitionError struct {
	Key string // strip or group key, may be empty
	Msg string
}

func (e *DefinitionError) Error() string {
	if e.Key == "" {
		return "definitions: " + e.Msg
	}
	return fmt.Sprintf("definitions: %s: %s", e.Key, e.Msg)
}

func (s *Strip) validate() error {
	if !keyRe.MatchString(s.Key) {
		return &DefinitionError{Key: s.Key, Msg: "key must match [a-z0-9_]+"}
	}
	if s.Name == "" {
		return &DefinitionError{Key: s.Key, Msg: "no name defined"}
	}
	if s.Homepage == "" {
		return &DefinitionError{Key: s.Key, Msg: "no homepage defined"}
	}
	if len(s.Steps) == 0 {
		return &DefinitionError{Key: s.Key, Msg: "no patterns defined"}
	}

	seen := map[string]bool{}
	for i := range s.Steps {
		st := &s.Steps[i]
		if !keyRe.MatchString(st.Name) {
			return &DefinitionError{Key: s.Key, Msg: fmt.Sprintf("pattern name %q must match [a-z0-9_]+", st.Name)}
		}
		if !st.FetchThrough {
			if seen[st.Name] {
				return &DefinitionError{Key: s.Key, Msg: fmt.Sprintf("duplicate result name %q", st.Name)}
			}
			seen[st.Name] = true
		}
		if err := st.compile(); err != nil {
			return &DefinitionError{Key: s.Key, Msg: err.Error()}
		}
	}
	return nil
}

// finish applies the load-time fixups the definition syntax allows:
// searchpage defaults to the homepage and a baseurl of "$homepage" is
// replaced with the homepage itself.
func (s *Strip) finish() {
	if s.SearchPage == "" {
		s.SearchPage = s.Homepage
	}
	if s.BaseURL == "$homepage" {
		s.BaseURL = s.Homepage
	}
	for i := range s.Steps {
		s.Steps[i].Name = strings.ToLower(s.Steps[i].Name)
	}
}
