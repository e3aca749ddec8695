// Package districts holds the fixed set of regions a forecast can be
// requested for.
package districts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed districts.yaml
var embeddedYAML []byte

// Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	names []string
	byKey map[string]string
}

type file struct {
	Districts []string `yaml:"districts"`
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return Parse(embeddedYAML)
}

// Load reads the registry from path, or the embedded list when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read districts file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse districts: %w", err)
	}
	if len(f.Districts) == 0 {
		return nil, errors.New("no districts defined")
	}

	r := &Registry{
		names: make([]string, 0, len(f.Districts)),
		byKey: make(map[string]string, len(f.Districts)),
	}
	for _, name := range f.Districts {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("empty district name")
		}
		key := strings.ToLower(name)
		if prev, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate district %q (already listed as %q)", name, prev)
		}
		r.byKey[key] = name
		r.names = append(r.names, name)
	}
	return r, nil
}

// Lookup returns the canonical spelling of name, ignoring case and
// surrounding whitespace.
func (r *Registry) Lookup(name string) (string, bool) {
	canonical, ok := r.byKey[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Names returns the districts in file order. The slice is a copy.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Len() int { return len(r.names) }
