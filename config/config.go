// Package config loads global-slot manifests from TOML files.
//
// A manifest lets an application declare the globals it wants without
// hardcoding them: each [[globals]] entry names an interface, whether
// it is a single capability or a multi-instance resource, whether the
// application can run without it, and an optional version ceiling. The
// manifest compiles into an env.Declaration backed by simple handlers.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/envkit/env"
	"github.com/vinayprograms/envkit/errors"
)

// Global kinds accepted in a manifest.
const (
	KindSingle = "single"
	KindMulti  = "multi"
)

// GlobalEntry is one [[globals]] entry of the manifest.
type GlobalEntry struct {
	// Interface is the protocol interface name.
	Interface string `toml:"interface"`

	// Kind is "single" or "multi".
	Kind string `toml:"kind"`

	// Required marks globals the application cannot run without.
	// Only meaningful for single globals.
	Required bool `toml:"required"`

	// MaxVersion caps the bind version; zero means bind whatever the
	// server advertises.
	MaxVersion uint32 `toml:"max_version"`
}

// Manifest is the declared slot set of an application.
type Manifest struct {
	// Name identifies the environment, for logging.
	Name string `toml:"name"`

	Globals []GlobalEntry `toml:"globals"`
}

// StandardPaths returns the manifest file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"environment.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "envkit", "environment.toml"))
	}

	return paths
}

// Load loads the manifest from the first available standard location.
// A missing manifest is not an error: the application may declare its
// slots in code instead.
func Load() (*Manifest, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			m, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return m, path, nil
		}
	}
	return nil, "", nil
}

// LoadFile loads and validates a manifest from a specific file.
func LoadFile(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, errors.New(errors.CodeInvalidDeclaration,
			fmt.Sprintf("parsing manifest %s", path),
			errors.WithCause(err))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Parse parses and validates a manifest from TOML source.
func Parse(data string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(data, &m); err != nil {
		return nil, errors.New(errors.CodeInvalidDeclaration,
			"parsing manifest", errors.WithCause(err))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for empty names, unknown kinds and
// duplicate interfaces.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool, len(m.Globals))
	for _, g := range m.Globals {
		if g.Interface == "" {
			return errors.InvalidDeclaration("manifest entry with empty interface name")
		}
		if g.Kind != KindSingle && g.Kind != KindMulti {
			return errors.Newf(errors.CodeInvalidDeclaration,
				"interface %s has unknown kind %q", g.Interface, g.Kind)
		}
		if seen[g.Interface] {
			return errors.Newf(errors.CodeInvalidDeclaration,
				"interface %s declared twice in manifest", g.Interface)
		}
		seen[g.Interface] = true
		if g.Required && g.Kind == KindMulti {
			return errors.Newf(errors.CodeInvalidDeclaration,
				"interface %s: required applies to single globals only", g.Interface)
		}
	}
	return nil
}

// Declaration compiles the manifest into a slot declaration backed by
// env.SimpleGlobal and env.SimpleMulti handlers.
func (m *Manifest) Declaration() env.Declaration {
	var decl env.Declaration
	for _, g := range m.Globals {
		switch g.Kind {
		case KindSingle:
			h := env.NewSimpleGlobal(g.Interface)
			if g.MaxVersion > 0 {
				h = env.NewSimpleGlobalAt(g.Interface, g.MaxVersion)
			}
			decl.Singles = append(decl.Singles, env.SingleSlot{Interface: g.Interface, Handler: h})
		case KindMulti:
			h := env.NewSimpleMulti(g.Interface)
			if g.MaxVersion > 0 {
				h = env.NewSimpleMultiAt(g.Interface, g.MaxVersion)
			}
			decl.Multis = append(decl.Multis, env.MultiSlot{Interface: g.Interface, Handler: h})
		}
	}
	return decl
}

// Required returns the interfaces marked required, for env.Ensure.
func (m *Manifest) Required() []string {
	var out []string
	for _, g := range m.Globals {
		if g.Required {
			out = append(out, g.Interface)
		}
	}
	return out
}
