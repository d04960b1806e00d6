// Package ingest loads a volume of narrative chapters from disk. A
// volume is a single file or a directory of chapter files ordered by
// name; .txt and .md chapters keep their exact bytes so issue spans can
// be fixed in place, while .pdf and .docx extract read-only text.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mtl-tools/mtlint/internal/detect"
)

// Chapter is one ordered unit of narrative text. Text is exactly what
// spans index; for writable chapters it is the file's bytes untouched,
// so the fixer's span checks hold against the file on disk.
type Chapter struct {
	Index int
	Title string
	Path  string
	Text  string
	Words int

	// Writable reports whether fixes can be written back to Path.
	// Extracted formats (pdf, docx) are lint-only.
	Writable bool
}

// Volume is an ordered sequence of chapters.
type Volume struct {
	Path     string
	Chapters []Chapter
}

var chapterExts = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".docx": true,
}

// LoadVolume reads a chapter file or a directory of chapter files.
// Directory entries order by name, which is how chaptered exports are
// conventionally numbered.
func LoadVolume(path string) (*Volume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	vol := &Volume{Path: path}
	if !info.IsDir() {
		ch, err := LoadChapter(path, 0)
		if err != nil {
			return nil, err
		}
		vol.Chapters = append(vol.Chapters, ch)
		return vol, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !chapterExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no chapter files under %s", path)
	}
	sort.Strings(names)

	for i, name := range names {
		ch, err := LoadChapter(filepath.Join(path, name), i)
		if err != nil {
			return nil, err
		}
		vol.Chapters = append(vol.Chapters, ch)
	}
	return vol, nil
}

// LoadChapter reads one chapter file by extension.
func LoadChapter(path string, index int) (Chapter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		ch  Chapter
		err error
	)
	switch ext {
	case ".txt":
		ch, err = loadText(path)
	case ".md":
		ch, err = loadMarkdown(path)
	case ".pdf":
		ch, err = loadPDF(path)
	case ".docx":
		ch, err = loadDOCX(path)
	default:
		return Chapter{}, fmt.Errorf("unsupported chapter type %s", ext)
	}
	if err != nil {
		return Chapter{}, err
	}
	ch.Index = index
	ch.Path = path
	ch.Words = detect.WordCount(ch.Text)
	if ch.Title == "" {
		ch.Title = titleFromName(path)
	}
	return ch, nil
}

func loadText(path string) (Chapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Chapter{}, fmt.Errorf("read chapter %s: %w", path, err)
	}
	return Chapter{Text: string(data), Writable: true}, nil
}

// titleFromName derives a readable title from the file name:
// "003-cold-wind.txt" becomes "cold wind".
func titleFromName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.TrimLeft(base, "0123456789")
	base = strings.Trim(base, "-_ ")
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	if base == "" {
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return base
}
