package entity

import (
	"bytes"
	"sync"
	"testing"

	"github.com/mtl-tools/mtlint/internal/lint"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Deborah Zack", "deborah zack"},
		{"  deborah   ZACK  ", "deborah zack"},
		{"Deborah\tZack", "deborah zack"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupStore(t *testing.T) {
	c := NewCache()
	if _, ok := c.Lookup("Deborah Zack"); ok {
		t.Fatal("empty cache reported a hit")
	}

	ref := lint.EntityReference{
		Term:         "Deborah Zack",
		Canonical:    "Devora Zack",
		Confidence:   1.0,
		Type:         lint.EntityAuthor,
		Obfuscated:   true,
		Verification: lint.VerifiedExternal,
	}
	c.Store("Deborah Zack", ref)

	// whitespace and case variants hit the same key
	for _, q := range []string{"Deborah Zack", "deborah zack", " Deborah  Zack "} {
		got, ok := c.Lookup(q)
		if !ok {
			t.Fatalf("Lookup(%q) missed", q)
		}
		if got.Canonical != "Devora Zack" || !got.Obfuscated {
			t.Errorf("Lookup(%q) = %+v", q, got)
		}
	}

	stats := c.Stats()
	if stats.Hits != 3 || stats.Misses != 1 || stats.Stores != 1 {
		t.Errorf("stats = %+v, want 3 hits, 1 miss, 1 store", stats)
	}
}

func TestLastWriteWins(t *testing.T) {
	c := NewCache()
	c.Store("Acme", lint.EntityReference{Term: "Acme", Canonical: "Acme Corp", Confidence: 0.6})
	c.Store("acme", lint.EntityReference{Term: "acme", Canonical: "Acme Corporation", Confidence: 0.9})
	got, ok := c.Lookup("ACME")
	if !ok || got.Canonical != "Acme Corporation" {
		t.Errorf("Lookup = %+v,%v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Store("Deborah Zack", lint.EntityReference{
					Term:      "Deborah Zack",
					Canonical: "Devora Zack",
				})
				if ref, ok := c.Lookup("deborah zack"); ok && ref.Canonical != "Devora Zack" {
					t.Errorf("racing lookup saw %+v", ref)
				}
			}
		}()
	}
	wg.Wait()
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c := NewCache()
	c.Store("Deborah Zack", lint.EntityReference{
		Term:         "Deborah Zack",
		Canonical:    "Devora Zack",
		Confidence:   1.0,
		Type:         lint.EntityAuthor,
		Obfuscated:   true,
		Verification: lint.VerifiedExternal,
	})
	c.Store("Managing for People Who Hate Managing", lint.EntityReference{
		Term:         "Managing for People Who Hate Managing",
		Canonical:    "Managing for People Who Hate Managing",
		Confidence:   0.9,
		Type:         lint.EntityTitle,
		Verification: lint.VerifiedNone,
	})

	var buf bytes.Buffer
	if err := c.Export(&buf); err != nil {
		t.Fatalf("Export error: %v", err)
	}

	restored := NewCache()
	if err := restored.Import(&buf); err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("restored %d entries, want 2", restored.Len())
	}
	got, ok := restored.Lookup("deborah zack")
	if !ok {
		t.Fatal("imported entry missing")
	}
	if got.Canonical != "Devora Zack" || got.Type != lint.EntityAuthor || !got.Obfuscated || got.Verification != lint.VerifiedExternal {
		t.Errorf("imported entry = %+v", got)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	c := NewCache()
	var buf bytes.Buffer
	if err := c.Export(&buf); err != nil {
		t.Fatal(err)
	}
	// corrupt the version by re-encoding a bumped snapshot
	other := NewCache()
	if err := other.Import(bytes.NewReader(append([]byte{0xc1}, buf.Bytes()...))); err == nil {
		t.Error("Import accepted a corrupt snapshot")
	}
}
