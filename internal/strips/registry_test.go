package strips

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const validDefs = `
strips:
  - key: smbc
    name: Saturday Morning Breakfast Cereal
    artist: Zach Weinersmith
    homepage: https://www.smbc-comics.com/
    baseurl: $homepage
    patterns:
      - name: main_strip
        kind: image
        pattern: 'id="cc-comic"[^>]*src="(?P<result>[^"]+)"'
      - name: title_text
        kind: text
        pattern: 'id="cc-comic"[^>]*title="(?P<result>[^"]+)"'
  - key: xkcd
    name: xkcd
    artist: Randall Munroe
    homepage: https://xkcd.com/
    searchpage: https://xkcd.com/
    patterns:
      - name: main_strip
        pattern: 'imgs\.xkcd\.com/comics/(?P<result>[^"]+)'
groups:
  - key: daily
    strips: [smbc, xkcd]
`

func TestLoadValid(t *testing.T) {
	reg, err := Load([]byte(validDefs))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff([]string{"smbc", "xkcd"}, reg.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	smbc := reg.Strip("smbc")
	if smbc == nil {
		t.Fatal("smbc not found")
	}
	if smbc.BaseURL != smbc.Homepage {
		t.Errorf("baseurl $homepage not resolved: %q", smbc.BaseURL)
	}
	if smbc.SearchPage != smbc.Homepage {
		t.Errorf("searchpage should default to homepage, got %q", smbc.SearchPage)
	}
	if got := smbc.ResultNames(); len(got) != 2 || got[0] != "main_strip" || got[1] != "title_text" {
		t.Errorf("ResultNames = %v", got)
	}

	// Patterns compile at load time.
	for i := range smbc.Steps {
		if smbc.Steps[i].Regexp() == nil {
			t.Errorf("step %q not compiled", smbc.Steps[i].Name)
		}
	}

	g := reg.Group("daily")
	if g == nil {
		t.Fatal("group daily not found")
	}
	if diff := cmp.Diff([]string{"smbc", "xkcd"}, g.Keys); diff != "" {
		t.Errorf("group members (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "duplicate strip key",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
  - key: a
    name: A again
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
`,
		},
		{
			name: "malformed regex",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>['}]
`,
		},
		{
			name: "missing result group",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(x)'}]
`,
		},
		{
			name: "two capture groups",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(y)(?P<result>x)'}]
`,
		},
		{
			name: "duplicate result name",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns:
      - {name: main_strip, pattern: '(?P<result>x)'}
      - {name: main_strip, pattern: '(?P<result>y)'}
`,
		},
		{
			name: "bad key charset",
			yaml: `
strips:
  - key: "A Strip!"
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
`,
		},
		{
			name: "no homepage",
			yaml: `
strips:
  - key: a
    name: A
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
`,
		},
		{
			name: "no patterns",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
`,
		},
		{
			name: "unknown group member",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
groups:
  - key: g
    strips: [a, nope]
`,
		},
		{
			name: "duplicate group member",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, pattern: '(?P<result>x)'}]
groups:
  - key: g
    strips: [a, a]
`,
		},
		{
			name: "unknown pattern kind",
			yaml: `
strips:
  - key: a
    name: A
    homepage: http://a/
    patterns: [{name: main_strip, kind: video, pattern: '(?P<result>x)'}]
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got none")
			}
			var defErr *DefinitionError
			if !errors.As(err, &defErr) {
				t.Fatalf("want *DefinitionError, got %T: %v", err, err)
			}
		})
	}
}

func TestExpandSelection(t *testing.T) {
	reg, err := Load([]byte(validDefs))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	keys, err := reg.Expand("SMBC", "")
	if err != nil {
		t.Fatalf("Expand strip: %v", err)
	}
	if diff := cmp.Diff([]string{"smbc"}, keys); diff != "" {
		t.Errorf("strip selection (-want +got):\n%s", diff)
	}

	keys, err = reg.Expand("", "daily")
	if err != nil {
		t.Fatalf("Expand group: %v", err)
	}
	if diff := cmp.Diff([]string{"smbc", "xkcd"}, keys); diff != "" {
		t.Errorf("group selection (-want +got):\n%s", diff)
	}

	if _, err := reg.Expand("missing", ""); err == nil {
		t.Error("unknown strip should fail")
	}
	if _, err := reg.Expand("", "missing"); err == nil {
		t.Error("unknown group should fail")
	}
	if _, err := reg.Expand("", ""); err == nil {
		t.Error("empty selection should fail")
	}
}
