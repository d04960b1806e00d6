// Package roster loads the character roster: canonical names, nicknames,
// and the narrator flag. The classifier validates speaker attributions
// against it, and the detector uses it to keep known names out of the
// proper-noun candidates.
package roster

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// Character is one roster entry.
type Character struct {
	// Name is the canonical character name
	Name string `yaml:"name"`

	// Aliases are nicknames and short forms that resolve to Name
	Aliases []string `yaml:"aliases,omitempty"`

	// Description is free-form metadata carried into classifier prompts
	Description string `yaml:"description,omitempty"`

	// Narrator marks the point-of-view character
	Narrator bool `yaml:"narrator,omitempty"`
}

// Roster is a loaded character roster with a name lookup index.
type Roster struct {
	Characters []Character `yaml:"characters"`

	narrator string
	index    map[string]string
}

// Empty returns a roster with no characters. Lookups miss and the
// narrator falls back to the generic name.
func Empty() *Roster {
	r := &Roster{}
	r.build()
	return r
}

// Load reads a roster YAML file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// Parse unmarshals and indexes a roster document.
func Parse(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	for i, ch := range r.Characters {
		if strings.TrimSpace(ch.Name) == "" {
			return nil, fmt.Errorf("roster character %d has no name", i)
		}
	}
	r.build()
	return &r, nil
}

func (r *Roster) build() {
	r.index = make(map[string]string)
	r.narrator = ""
	for _, ch := range r.Characters {
		r.index[foldName(ch.Name)] = ch.Name
		for _, alias := range ch.Aliases {
			if alias == "" {
				continue
			}
			r.index[foldName(alias)] = ch.Name
		}
		// name parts resolve too, so "Ming" finds "Chen Ming"
		for _, part := range strings.Fields(ch.Name) {
			key := foldName(part)
			if _, taken := r.index[key]; !taken {
				r.index[key] = ch.Name
			}
		}
		if ch.Narrator && r.narrator == "" {
			r.narrator = ch.Name
		}
	}
}

// WithNarrator returns a roster whose narrator is the named character.
// A name the roster does not know is added as a new character carrying
// the flag.
func (r *Roster) WithNarrator(name string) *Roster {
	if strings.TrimSpace(name) == "" {
		return r
	}
	canonical, known := r.Match(name)
	if !known {
		canonical = name
	}
	out := &Roster{Characters: make([]Character, len(r.Characters))}
	copy(out.Characters, r.Characters)
	for i := range out.Characters {
		out.Characters[i].Narrator = out.Characters[i].Name == canonical
	}
	if !known {
		out.Characters = append(out.Characters, Character{Name: name, Narrator: true})
	}
	out.build()
	return out
}

// Narrator returns the flagged narrator's canonical name, or the generic
// narrator name when no character carries the flag.
func (r *Roster) Narrator() string {
	if r.narrator != "" {
		return r.narrator
	}
	return lint.SpeakerNarrator
}

// Names returns every canonical name and alias, canonical names first.
func (r *Roster) Names() []string {
	var names []string
	for _, ch := range r.Characters {
		names = append(names, ch.Name)
	}
	for _, ch := range r.Characters {
		names = append(names, ch.Aliases...)
	}
	return names
}

// Match resolves a possibly partial or nicknamed attribution to its
// canonical name. Matching is case-insensitive across names, aliases, and
// single name parts; it is never fuzzy.
func (r *Roster) Match(name string) (string, bool) {
	canonical, ok := r.index[foldName(name)]
	return canonical, ok
}

// Known reports whether the name resolves against the roster.
func (r *Roster) Known(name string) bool {
	_, ok := r.Match(name)
	return ok
}

// Get returns the full character entry for a canonical or alias name.
func (r *Roster) Get(name string) (Character, bool) {
	canonical, ok := r.Match(name)
	if !ok {
		return Character{}, false
	}
	for _, ch := range r.Characters {
		if ch.Name == canonical {
			return ch, true
		}
	}
	return Character{}, false
}

func foldName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
