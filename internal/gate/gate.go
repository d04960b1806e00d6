// Package gate applies the confidence gate and the auto-fixer. Issues
// carrying a safe suggestion at or above the threshold are substituted
// into their files; everything else queues for human review. Every file
// is snapshotted before its first modification so a run can be rolled
// back bit for bit.
package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// DefaultThreshold gates auto-fixes when no catalog threshold is given.
const DefaultThreshold = 0.95

// ErrWriteConflict means a file no longer matches the content its issues
// were detected against. The whole file batch aborts; nothing is written.
var ErrWriteConflict = errors.New("file changed since it was read")

// HashContent fingerprints chapter content for write-conflict detection.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Buckets holds the two sides of the confidence gate.
type Buckets struct {
	AutoFixable    []lint.Issue
	ReviewRequired []lint.Issue
}

// Partition splits issues at the threshold. An issue is auto-fixable only
// with a non-empty suggestion and confidence at or above the threshold;
// the boundary itself passes.
func Partition(issues []lint.Issue, threshold float64) Buckets {
	var b Buckets
	for _, iss := range issues {
		if iss.Suggested != "" && iss.Confidence >= threshold {
			b.AutoFixable = append(b.AutoFixable, iss)
		} else {
			b.ReviewRequired = append(b.ReviewRequired, iss)
		}
	}
	return b
}

// Options configure the fixer behavior.
type Options struct {
	DryRun    bool
	Threshold float64
}

// Fixer applies gated fixes file by file. Safe for concurrent use:
// writes to one file are serialized while different files proceed in
// parallel.
type Fixer struct {
	opts    Options
	backups *BackupStore

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	records []lint.FixRecord
}

// New creates a Fixer writing snapshots into backups. backups may be nil
// only in dry-run mode; a live fixer refuses to write without one.
func New(backups *BackupStore, opts Options) *Fixer {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &Fixer{
		opts:    opts,
		backups: backups,
		locks:   make(map[string]*sync.Mutex),
	}
}

// FileResult is the outcome of one file batch.
type FileResult struct {
	File    string
	Records []lint.FixRecord
	Review  []lint.Issue
	Content []byte
}

// Apply gates and applies the issues for one file. expectHash, when
// non-empty, must match the file's current content. The batch aborts
// with ErrWriteConflict, writing nothing, when the hash differs or any
// suggestion no longer matches the text at its recorded span.
func (f *Fixer) Apply(path string, issues []lint.Issue, expectHash string) (*FileResult, error) {
	lock := f.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if expectHash != "" && HashContent(content) != expectHash {
		return nil, fmt.Errorf("%w: %s", ErrWriteConflict, path)
	}

	buckets := Partition(issues, f.opts.Threshold)
	res := &FileResult{File: path, Review: buckets.ReviewRequired, Content: content}
	if len(buckets.AutoFixable) == 0 {
		return res, nil
	}

	// Descending span order keeps earlier offsets valid as later text
	// shifts under the substitutions.
	fixes := make([]lint.Issue, len(buckets.AutoFixable))
	copy(fixes, buckets.AutoFixable)
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].Span.Start > fixes[j].Span.Start })

	now := time.Now().UTC()
	next := content
	lowest := len(content) + 1
	var records []lint.FixRecord
	for _, iss := range fixes {
		span := iss.Span
		if span.Start < 0 || span.End > len(content) || span.Start >= span.End {
			return nil, fmt.Errorf("%w: %s: issue %s spans [%d,%d) outside the file", ErrWriteConflict, path, iss.ID, span.Start, span.End)
		}
		if span.End > lowest {
			// Overlaps a substitution already applied; leave it for review.
			res.Review = append(res.Review, iss)
			continue
		}
		if string(content[span.Start:span.End]) != iss.Original {
			return nil, fmt.Errorf("%w: %s: text at [%d,%d) no longer matches %q", ErrWriteConflict, path, span.Start, span.End, iss.Original)
		}
		next = splice(next, span, iss.Suggested)
		records = append(records, lint.FixRecord{
			IssueID:    iss.ID,
			File:       path,
			Original:   iss.Original,
			Fixed:      iss.Suggested,
			Confidence: iss.Confidence,
			AppliedAt:  now,
		})
		lowest = span.Start
	}
	if len(records) == 0 {
		return res, nil
	}

	res.Content = next
	res.Records = records
	if f.opts.DryRun {
		return res, nil
	}

	if f.backups == nil {
		return nil, fmt.Errorf("refusing to fix %s without a backup store", path)
	}
	if err := f.backups.Ensure(path, content); err != nil {
		return nil, fmt.Errorf("backing up %s: %w", path, err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := writeFileAtomic(path, next, mode); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	f.mu.Lock()
	f.records = append(f.records, records...)
	f.mu.Unlock()
	return res, nil
}

// Records returns every fix applied through this fixer, in application
// order.
func (f *Fixer) Records() []lint.FixRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]lint.FixRecord, len(f.records))
	copy(out, f.records)
	return out
}

func (f *Fixer) fileLock(path string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[path]
	if !ok {
		l = &sync.Mutex{}
		f.locks[path] = l
	}
	return l
}

func splice(data []byte, span lint.Span, repl string) []byte {
	out := make([]byte, 0, len(data)-span.Len()+len(repl))
	out = append(out, data[:span.Start]...)
	out = append(out, repl...)
	out = append(out, data[span.End:]...)
	return out
}

// writeFileAtomic replaces path through a temp file in the same
// directory; a failure at any point leaves the original untouched.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".mtlint-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
