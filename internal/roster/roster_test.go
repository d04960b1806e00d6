package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mtl-tools/mtlint/internal/lint"
)

const sampleRoster = `
characters:
  - name: Chen Ming
    aliases: ["Little Ming"]
    description: caravan guard captain
  - name: Devora Zack
    narrator: true
  - name: Marie
    aliases: [Mare]
`

func mustParse(t *testing.T) *Roster {
	t.Helper()
	r, err := Parse([]byte(sampleRoster))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return r
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(path, []byte(sampleRoster), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(r.Characters) != 3 {
		t.Errorf("loaded %d characters, want 3", len(r.Characters))
	}
}

func TestMatch(t *testing.T) {
	r := mustParse(t)

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"Chen Ming", "Chen Ming", true},
		{"chen ming", "Chen Ming", true},
		{"Chen", "Chen Ming", true},
		{"Ming", "Chen Ming", true},
		{"Little Ming", "Chen Ming", true},
		{"Mare", "Marie", true},
		{"Devora   Zack", "Devora Zack", true},
		{"Deborah Zack", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := r.Match(tt.query)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Match(%q) = %q,%v want %q,%v", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNarrator(t *testing.T) {
	r := mustParse(t)
	if got := r.Narrator(); got != "Devora Zack" {
		t.Errorf("Narrator() = %q, want Devora Zack", got)
	}
	if got := Empty().Narrator(); got != lint.SpeakerNarrator {
		t.Errorf("empty roster Narrator() = %q, want %q", got, lint.SpeakerNarrator)
	}
}

func TestWithNarrator(t *testing.T) {
	r := mustParse(t)

	// alias resolves to the canonical name, and the original flag moves
	moved := r.WithNarrator("Little Ming")
	if got := moved.Narrator(); got != "Chen Ming" {
		t.Errorf("Narrator() = %q, want Chen Ming", got)
	}
	if got := r.Narrator(); got != "Devora Zack" {
		t.Errorf("original roster mutated: Narrator() = %q", got)
	}

	// an unknown name is added as a new character
	added := r.WithNarrator("Stranger")
	if got := added.Narrator(); got != "Stranger" {
		t.Errorf("Narrator() = %q, want Stranger", got)
	}
	if !added.Known("Stranger") {
		t.Error("added narrator not matchable")
	}

	if got := r.WithNarrator("  "); got.Narrator() != "Devora Zack" {
		t.Errorf("blank override changed narrator to %q", got.Narrator())
	}
}

func TestNames(t *testing.T) {
	r := mustParse(t)
	names := r.Names()
	want := map[string]bool{"Chen Ming": true, "Devora Zack": true, "Marie": true, "Little Ming": true, "Mare": true}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected name %q", n)
		}
	}
}

func TestParseRejectsUnnamed(t *testing.T) {
	if _, err := Parse([]byte("characters:\n  - aliases: [X]\n")); err == nil {
		t.Error("Parse accepted a character without a name")
	}
}

func TestGet(t *testing.T) {
	r := mustParse(t)
	ch, ok := r.Get("Little Ming")
	if !ok || ch.Name != "Chen Ming" || ch.Description == "" {
		t.Errorf("Get(Little Ming) = %+v,%v", ch, ok)
	}
	if _, ok := r.Get("Nobody Here"); ok {
		t.Error("Get resolved an unknown name")
	}
}
