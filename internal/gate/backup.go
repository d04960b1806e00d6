package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestName is the index file inside a backup directory.
const ManifestName = "manifest.json"

// Snapshot is one backed-up file: the exact bytes it held before the
// first fix touched it.
type Snapshot struct {
	Path       string
	CapturedAt time.Time
	Content    []byte
}

// Manifest indexes the snapshots of one run.
type Manifest struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry records one snapshot. SHA256 covers the snapshot bytes
// so a corrupt backup is caught before it is restored.
type ManifestEntry struct {
	Path       string    `json:"path"`
	Backup     string    `json:"backup"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	Mode       uint32    `json:"mode"`
	CapturedAt time.Time `json:"captured_at"`
}

// BackupStore snapshots files under a directory before they are
// modified. The first snapshot of a path wins; later calls for the same
// path are no-ops, so the store always holds pre-run content.
type BackupStore struct {
	dir   string
	runID string

	mu      sync.Mutex
	entries map[string]ManifestEntry
	order   []string
	created time.Time
}

// NewBackupStore creates the backup directory and its files/ area.
func NewBackupStore(dir, runID string) (*BackupStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "files"), 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}
	return &BackupStore{
		dir:     dir,
		runID:   runID,
		entries: make(map[string]ManifestEntry),
		created: time.Now().UTC(),
	}, nil
}

// Dir returns the backup directory.
func (b *BackupStore) Dir() string { return b.dir }

// Len reports how many files are snapshotted.
func (b *BackupStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Ensure snapshots content for path unless a snapshot already exists,
// then persists the manifest. content must be the bytes read before any
// fix was applied.
func (b *BackupStore) Ensure(path string, content []byte) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[abs]; ok {
		return nil
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}

	rel := filepath.Join("files", fmt.Sprintf("%04d-%s", len(b.order)+1, filepath.Base(path)))
	if err := os.WriteFile(filepath.Join(b.dir, rel), content, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	b.entries[abs] = ManifestEntry{
		Path:       abs,
		Backup:     rel,
		SHA256:     HashContent(content),
		Size:       int64(len(content)),
		Mode:       uint32(mode.Perm()),
		CapturedAt: time.Now().UTC(),
	}
	b.order = append(b.order, abs)
	return b.save()
}

// Snapshot returns the stored snapshot for path.
func (b *BackupStore) Snapshot(path string) (Snapshot, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Snapshot{}, false
	}

	b.mu.Lock()
	e, ok := b.entries[abs]
	b.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	content, err := os.ReadFile(filepath.Join(b.dir, e.Backup))
	if err != nil {
		return Snapshot{}, false
	}
	return Snapshot{Path: e.Path, CapturedAt: e.CapturedAt, Content: content}, true
}

func (b *BackupStore) save() error {
	m := Manifest{RunID: b.runID, CreatedAt: b.created}
	for _, p := range b.order {
		m.Files = append(m.Files, b.entries[p])
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(b.dir, ManifestName), append(data, '\n'), 0o644)
}

// LoadManifest reads the manifest from a backup directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading backup manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing backup manifest: %w", err)
	}
	return &m, nil
}

// RollbackResult lists what a rollback restored.
type RollbackResult struct {
	RunID    string
	Restored []string
}

// Rollback restores files from a backup directory bit for bit. With no
// paths every snapshotted file is restored; otherwise only the named
// files are. Restoration is per file: one corrupt snapshot does not
// stop the rest, and all failures come back joined.
func Rollback(dir string, paths ...string) (*RollbackResult, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		want[abs] = true
	}

	res := &RollbackResult{RunID: m.RunID}
	var errs []error
	for _, e := range m.Files {
		if len(want) > 0 && !want[e.Path] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Backup))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Path, err))
			continue
		}
		if HashContent(content) != e.SHA256 {
			errs = append(errs, fmt.Errorf("%s: snapshot failed its integrity check", e.Path))
			continue
		}
		if err := writeFileAtomic(e.Path, content, fs.FileMode(e.Mode)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Path, err))
			continue
		}
		res.Restored = append(res.Restored, e.Path)
	}
	return res, errors.Join(errs...)
}
