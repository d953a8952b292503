package strips

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry is the read-only collection of strips and groups for one run.
type Registry struct {
	strips map[string]*Strip
	groups map[string]*Group
	order  []string
}

type patternYAML struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
	Fetch   bool   `yaml:"fetch"`
}

type stripYAML struct {
	Key        string        `yaml:"key"`
	Name       string        `yaml:"name"`
	Artist     string        `yaml:"artist"`
	Homepage   string        `yaml:"homepage"`
	SearchPage string        `yaml:"searchpage"`
	BaseURL    string        `yaml:"baseurl"`
	OnHold     bool          `yaml:"onhold"`
	Patterns   []patternYAML `yaml:"patterns"`
}

type groupYAML struct {
	Key    string   `yaml:"key"`
	Strips []string `yaml:"strips"`
}

type definitionsYAML struct {
	Strips []stripYAML `yaml:"strips"`
	Groups []groupYAML `yaml:"groups"`
}

// LoadFile reads and validates a definitions file. Every error here is a
// *DefinitionError (or a YAML/file error); nothing is fetched yet.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read definitions %s: %w", path, err)
	}
	return Load(b)
}

// Load builds a Registry from raw YAML.
func Load(data []byte) (*Registry, error) {
	var file definitionsYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &DefinitionError{Msg: err.Error()}
	}

	reg := &Registry{
		strips: make(map[string]*Strip, len(file.Strips)),
		groups: make(map[string]*Group, len(file.Groups)),
	}

	for _, sy := range file.Strips {
		s := &Strip{
			Key:        strings.ToLower(strings.TrimSpace(sy.Key)),
			Name:       sy.Name,
			Artist:     sy.Artist,
			Homepage:   sy.Homepage,
			SearchPage: sy.SearchPage,
			BaseURL:    sy.BaseURL,
			OnHold:     sy.OnHold,
		}
		for _, py := range sy.Patterns {
			kind, err := parseKind(py.Kind)
			if err != nil {
				return nil, &DefinitionError{Key: s.Key, Msg: err.Error()}
			}
			s.Steps = append(s.Steps, PatternStep{
				Name:         strings.TrimSpace(py.Name),
				Kind:         kind,
				Pattern:      py.Pattern,
				FetchThrough: py.Fetch,
			})
		}

		s.finish()
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := reg.strips[s.Key]; dup {
			return nil, &DefinitionError{Key: s.Key, Msg: "duplicate strip key"}
		}
		reg.strips[s.Key] = s
		reg.order = append(reg.order, s.Key)
	}

	for _, gy := range file.Groups {
		g := &Group{Key: strings.ToLower(strings.TrimSpace(gy.Key))}
		if !keyRe.MatchString(g.Key) {
			return nil, &DefinitionError{Key: g.Key, Msg: "group key must match [a-z0-9_]+"}
		}
		if _, dup := reg.groups[g.Key]; dup {
			return nil, &DefinitionError{Key: g.Key, Msg: "duplicate group key"}
		}
		seen := map[string]bool{}
		for _, member := range gy.Strips {
			member = strings.ToLower(strings.TrimSpace(member))
			if _, ok := reg.strips[member]; !ok {
				return nil, &DefinitionError{Key: g.Key, Msg: fmt.Sprintf("unknown strip %q in group", member)}
			}
			// A repeated member would make a run process the same key
			// twice concurrently.
			if seen[member] {
				return nil, &DefinitionError{Key: g.Key, Msg: fmt.Sprintf("duplicate strip %q in group", member)}
			}
			seen[member] = true
			g.Keys = append(g.Keys, member)
		}
		reg.groups[g.Key] = g
	}

	return reg, nil
}

func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "img", "":
		return KindImage, nil
	case "text", "txt":
		return KindText, nil
	default:
		return 0, fmt.Errorf("unknown pattern kind %q", s)
	}
}

// Strip returns the definition for key, or nil.
func (r *Registry) Strip(key string) *Strip {
	return r.strips[strings.ToLower(key)]
}

// Group returns the group for key, or nil.
func (r *Registry) Group(key string) *Group {
	return r.groups[strings.ToLower(key)]
}

// Keys lists all strip keys in definition order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// GroupKeys lists all group keys, sorted.
func (r *Registry) GroupKeys() []string {
	out := make([]string, 0, len(r.groups))
	for k := range r.groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Expand resolves a strip key or group key into the ordered list of strip
// keys to process.
func (r *Registry) Expand(stripKey, groupKey string) ([]string, error) {
	switch {
	case stripKey != "":
		if r.Strip(stripKey) == nil {
			return nil, &DefinitionError{Key: stripKey, Msg: "unknown strip"}
		}
		return []string{strings.ToLower(stripKey)}, nil
	case groupKey != "":
		g := r.Group(groupKey)
		if g == nil {
			return nil, &DefinitionError{Key: groupKey, Msg: "unknown group"}
		}
		return append([]string(nil), g.Keys...), nil
	default:
		return nil, &DefinitionError{Msg: "no strip or group selected"}
	}
}
