package gate

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mtl-tools/mtlint/internal/catalog"
	"github.com/mtl-tools/mtlint/internal/detect"
	"github.com/mtl-tools/mtlint/internal/lint"
)

func issueAt(t *testing.T, text, term, suggested string, conf float64) lint.Issue {
	t.Helper()
	i := strings.Index(text, term)
	if i < 0 {
		t.Fatalf("%q not in %q", term, text)
	}
	return lint.Issue{
		ID:         lint.NewID(),
		Kind:       "style/filler",
		Severity:   lint.SeverityMedium,
		Confidence: conf,
		Line:       1,
		Span:       lint.Span{Start: i, End: i + len(term)},
		Original:   term,
		Suggested:  suggested,
		Source:     lint.SourcePattern,
	}
}

func writeChapter(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newFixer(t *testing.T, dir string, opts Options) (*Fixer, *BackupStore) {
	t.Helper()
	backups, err := NewBackupStore(filepath.Join(dir, "backups"), "test-run")
	if err != nil {
		t.Fatalf("NewBackupStore: %v", err)
	}
	return New(backups, opts), backups
}

func TestPartition(t *testing.T) {
	issues := []lint.Issue{
		{ID: "a", Confidence: 0.95, Suggested: "felt"},
		{ID: "b", Confidence: 0.9499, Suggested: "felt"},
		{ID: "c", Confidence: 1.0, Suggested: ""},
		{ID: "d", Confidence: 0.99, Suggested: "…"},
		{ID: "e", Confidence: 0.2, Suggested: ""},
	}
	b := Partition(issues, 0.95)

	autoIDs := make([]string, 0, len(b.AutoFixable))
	for _, iss := range b.AutoFixable {
		autoIDs = append(autoIDs, iss.ID)
	}
	if strings.Join(autoIDs, ",") != "a,d" {
		t.Errorf("auto = %v, want [a d]", autoIDs)
	}
	if len(b.ReviewRequired) != 3 {
		t.Errorf("review = %d issues, want 3", len(b.ReviewRequired))
	}
	// The boundary is inclusive: exactly-threshold confidence passes,
	// a hard-cap violation without a suggestion never does.
	if b.AutoFixable[0].ID != "a" {
		t.Errorf("boundary issue did not pass the gate")
	}
}

func TestApplyFillerFix(t *testing.T) {
	dir := t.TempDir()
	content := []byte("I couldn't help but feel sad.")
	path := writeChapter(t, dir, "chapter1.txt", content)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "couldn't help but feel", "felt", 0.95)
	res, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "I felt sad." {
		t.Errorf("content = %q, want %q", got, "I felt sad.")
	}

	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if rec.IssueID != iss.ID || rec.Original != "couldn't help but feel" || rec.Fixed != "felt" || rec.Confidence != 0.95 {
		t.Errorf("record = %+v", rec)
	}
	if rec.AppliedAt.IsZero() {
		t.Error("record has no timestamp")
	}

	if backups.Len() != 1 {
		t.Fatalf("backups = %d, want 1", backups.Len())
	}
	snap, ok := backups.Snapshot(path)
	if !ok {
		t.Fatal("no snapshot for the fixed file")
	}
	if !bytes.Equal(snap.Content, content) {
		t.Errorf("snapshot = %q, want the pre-fix bytes", snap.Content)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("snapshot has no timestamp")
	}

	if n := len(fixer.Records()); n != 1 {
		t.Errorf("fixer records = %d, want 1", n)
	}
}

// Detection and application must agree end to end: the catalog's
// apostrophe-tolerant patterns, the scanner's spans, and the fixer's
// splice all work on the same bytes, for both apostrophe forms.
func TestApplyDetectedFiller(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	scanner := detect.NewScanner(cat, nil)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"straight apostrophe", "I couldn't help but feel sad.", "I felt sad."},
		{"curly apostrophe", "I couldn’t help but feel sad.", "I felt sad."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeChapter(t, dir, "chapter.txt", []byte(tt.content))
			fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

			issues := scanner.ScanAll(path, tt.content)
			if len(issues) != 1 {
				t.Fatalf("scanner found %d issues, want 1: %+v", len(issues), issues)
			}

			res, err := fixer.Apply(path, issues, HashContent([]byte(tt.content)))
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if len(res.Records) != 1 || len(res.Review) != 0 {
				t.Fatalf("records/review = %d/%d, want 1/0", len(res.Records), len(res.Review))
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read back: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
			if backups.Len() != 1 {
				t.Errorf("backups = %d, want 1", backups.Len())
			}
		})
	}
}

func TestApplyObfuscatedReference(t *testing.T) {
	dir := t.TempDir()
	content := []byte("Deborah Zack wrote the book on networking.")
	path := writeChapter(t, dir, "chapter2.txt", content)
	fixer, _ := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "Deborah Zack", "Devora Zack", 0.97)
	iss.Kind = "entity/obfuscated-reference"
	iss.Source = lint.SourceClassifier

	if _, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "Devora Zack wrote the book on networking." {
		t.Errorf("content = %q", got)
	}
}

func TestApplyDescendingOrder(t *testing.T) {
	dir := t.TempDir()
	content := []byte("The  cat sat on the  mat.")
	path := writeChapter(t, dir, "chapter3.txt", content)
	fixer, _ := newFixer(t, dir, Options{Threshold: 0.95})

	first := strings.Index(string(content), "  ")
	second := strings.LastIndex(string(content), "  ")
	issues := []lint.Issue{
		{ID: lint.NewID(), Kind: "hygiene/double-space", Confidence: 0.99, Span: lint.Span{Start: first, End: first + 2}, Original: "  ", Suggested: " "},
		{ID: lint.NewID(), Kind: "hygiene/double-space", Confidence: 0.99, Span: lint.Span{Start: second, End: second + 2}, Original: "  ", Suggested: " "},
	}

	res, err := fixer.Apply(path, issues, HashContent(content))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	got, _ := os.ReadFile(path)
	if string(got) != "The cat sat on the mat." {
		t.Errorf("content = %q", got)
	}
}

func TestApplyOverlapGoesToReview(t *testing.T) {
	dir := t.TempDir()
	content := []byte("He could care less about it.")
	path := writeChapter(t, dir, "chapter4.txt", content)
	fixer, _ := newFixer(t, dir, Options{Threshold: 0.95})

	outer := issueAt(t, string(content), "could care less", "couldn't care less", 0.96)
	inner := issueAt(t, string(content), "care less", "cares little", 0.96)

	res, err := fixer.Apply(path, []lint.Issue{outer, inner}, HashContent(content))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if len(res.Review) != 1 || res.Review[0].ID != outer.ID {
		t.Errorf("review = %+v, want the overlapped outer issue", res.Review)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "He could cares little about it." {
		t.Errorf("content = %q", got)
	}
}

func TestApplyWriteConflictOnHash(t *testing.T) {
	dir := t.TempDir()
	content := []byte("I couldn't help but feel sad.")
	path := writeChapter(t, dir, "chapter5.txt", content)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "couldn't help but feel", "felt", 0.95)
	staleHash := HashContent([]byte("something else entirely"))

	_, err := fixer.Apply(path, []lint.Issue{iss}, staleHash)
	if !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("err = %v, want ErrWriteConflict", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, content) {
		t.Errorf("file was modified on a conflict")
	}
	if backups.Len() != 0 {
		t.Errorf("backup taken on a conflict")
	}
}

func TestApplyWriteConflictOnStaleSpan(t *testing.T) {
	dir := t.TempDir()
	content := []byte("I couldn't help but feel sad.")
	path := writeChapter(t, dir, "chapter6.txt", content)
	fixer, _ := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "couldn't help but feel", "felt", 0.95)
	if _, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content)); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	fixed, _ := os.ReadFile(path)

	// Replaying the same issues against the fixed file must not splice
	// blindly; the span no longer holds the original text.
	_, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(fixed))
	if !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("err = %v, want ErrWriteConflict", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, fixed) {
		t.Errorf("file changed on a conflicting replay")
	}
}

func TestApplyDryRun(t *testing.T) {
	dir := t.TempDir()
	content := []byte("I couldn't help but feel sad.")
	path := writeChapter(t, dir, "chapter7.txt", content)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95, DryRun: true})

	iss := issueAt(t, string(content), "couldn't help but feel", "felt", 0.95)
	res, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(res.Content) != "I felt sad." {
		t.Errorf("predicted content = %q", res.Content)
	}
	if len(res.Records) != 1 {
		t.Errorf("got %d records, want the predicted record", len(res.Records))
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, content) {
		t.Errorf("dry run modified the file")
	}
	if backups.Len() != 0 {
		t.Errorf("dry run took a backup")
	}
	if len(fixer.Records()) != 0 {
		t.Errorf("dry run accumulated records")
	}
}

func TestApplyRefusesWithoutBackups(t *testing.T) {
	dir := t.TempDir()
	content := []byte("I couldn't help but feel sad.")
	path := writeChapter(t, dir, "chapter8.txt", content)
	fixer := New(nil, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "couldn't help but feel", "felt", 0.95)
	_, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content))
	if err == nil || !strings.Contains(err.Error(), "backup") {
		t.Fatalf("err = %v, want a backup refusal", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, content) {
		t.Errorf("file modified without a backup store")
	}
}

func TestApplyReviewOnly(t *testing.T) {
	dir := t.TempDir()
	content := []byte("Some ordinary sentence.")
	path := writeChapter(t, dir, "chapter9.txt", content)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "ordinary", "plain", 0.6)
	res, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Records) != 0 || len(res.Review) != 1 {
		t.Errorf("records=%d review=%d", len(res.Records), len(res.Review))
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, content) {
		t.Errorf("file modified with nothing above the gate")
	}
	if backups.Len() != 0 {
		t.Errorf("backup taken with nothing to fix")
	}
}

// The first snapshot survives later fixes in the same run, so rollback
// lands on pre-run content even after several rounds of fixing.
func TestRollbackRestoresOriginal(t *testing.T) {
	dir := t.TempDir()
	original := []byte("caf\xc3\xa9  line\r\nsecond\tline\x00A  b.")
	path := writeChapter(t, dir, "chapter10.txt", original)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	fix := func(current []byte) {
		t.Helper()
		i := bytes.Index(current, []byte("  "))
		if i < 0 {
			t.Fatal("no double space left to fix")
		}
		iss := lint.Issue{
			ID: lint.NewID(), Kind: "hygiene/double-space", Confidence: 0.99,
			Span: lint.Span{Start: i, End: i + 2}, Original: "  ", Suggested: " ",
		}
		if _, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(current)); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	fix(original)
	afterFirst, _ := os.ReadFile(path)
	fix(afterFirst)

	if backups.Len() != 1 {
		t.Fatalf("backups = %d, want one snapshot per file", backups.Len())
	}

	res, err := Rollback(backups.Dir())
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.Restored) != 1 || res.RunID != "test-run" {
		t.Errorf("result = %+v", res)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, original) {
		t.Errorf("restored = %q, want the exact original bytes", got)
	}
}

func TestRollbackSingleFile(t *testing.T) {
	dir := t.TempDir()
	contentA := []byte("A  a.")
	contentB := []byte("B  b.")
	pathA := writeChapter(t, dir, "a.txt", contentA)
	pathB := writeChapter(t, dir, "b.txt", contentB)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	for _, f := range []struct {
		path    string
		content []byte
	}{{pathA, contentA}, {pathB, contentB}} {
		iss := issueAt(t, string(f.content), "  ", " ", 0.99)
		iss.Kind = "hygiene/double-space"
		if _, err := fixer.Apply(f.path, []lint.Issue{iss}, HashContent(f.content)); err != nil {
			t.Fatalf("Apply %s: %v", f.path, err)
		}
	}

	res, err := Rollback(backups.Dir(), pathA)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(res.Restored) != 1 {
		t.Fatalf("restored %d files, want 1", len(res.Restored))
	}

	gotA, _ := os.ReadFile(pathA)
	if !bytes.Equal(gotA, contentA) {
		t.Errorf("a.txt = %q, want restored", gotA)
	}
	gotB, _ := os.ReadFile(pathB)
	if string(gotB) != "B b." {
		t.Errorf("b.txt = %q, want still fixed", gotB)
	}
}

func TestRollbackRejectsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	content := []byte("C  c.")
	path := writeChapter(t, dir, "c.txt", content)
	fixer, backups := newFixer(t, dir, Options{Threshold: 0.95})

	iss := issueAt(t, string(content), "  ", " ", 0.99)
	if _, err := fixer.Apply(path, []lint.Issue{iss}, HashContent(content)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fixed, _ := os.ReadFile(path)

	m, err := LoadManifest(backups.Dir())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(backups.Dir(), m.Files[0].Backup), []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, err = Rollback(backups.Dir())
	if err == nil || !strings.Contains(err.Error(), "integrity") {
		t.Fatalf("err = %v, want an integrity failure", err)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, fixed) {
		t.Errorf("corrupt snapshot was restored over the file")
	}
}
