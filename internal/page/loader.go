// Package page reads the per-page extraction files (page.<N>.json) that the
// PDF pipeline writes and turns them into ordered content segments.
package page

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
)

// Segment kinds.
const (
	KindText  = "text"
	KindTable = "table"
)

// fileNamePattern only accepts canonical page numbers, so page.01.json is
// not a second file for page 1.
var fileNamePattern = regexp.MustCompile(`^page\.(0|[1-9]\d*)\.json$`)

// File is a page file found in a source directory.
type File struct {
	Path string
	Page int
}

// Document is one parsed page. HasContent is false when the file carries no
// content field at all.
type Document struct {
	Page       int
	Height     float64
	Width      float64
	HasContent bool
	Segments   []Segment
}

// Segment is one content block of a page. Text is set for text segments,
// Rows for table segments.
type Segment struct {
	Index int
	Kind  string
	Text  string
	Rows  [][]string
	Box   []float64
}

type rawDocument struct {
	Height  float64       `json:"height"`
	Width   float64       `json:"width"`
	Content *[]rawSegment `json:"content"`
}

type rawSegment struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
	Box     []float64       `json:"box"`
}

// List returns the page files of dir ordered by page number.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, File{Path: filepath.Join(dir, entry.Name()), Page: n})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Page < files[j].Page
	})
	return files, nil
}

// Load reads and parses one page file. Malformed JSON is reported as
// ErrMalformedPage.
func Load(f File) (*Document, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading page file %s: %w", f.Path, err)
	}
	return Parse(f.Page, data)
}

// Parse decodes the JSON of a page.
func Parse(pageNum int, data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", apperrors.ErrMalformedPage, pageNum, err)
	}
	doc := &Document{
		Page:   pageNum,
		Height: raw.Height,
		Width:  raw.Width,
	}
	if raw.Content == nil {
		return doc, nil
	}
	doc.HasContent = true
	doc.Segments = make([]Segment, 0, len(*raw.Content))
	for i, rs := range *raw.Content {
		seg := Segment{Index: i, Kind: rs.Type, Box: rs.Box}
		switch rs.Type {
		case KindText:
			if err := decodeOptional(rs.Content, &seg.Text); err != nil {
				return nil, fmt.Errorf("%w: page %d segment %d: %v", apperrors.ErrMalformedPage, pageNum, i, err)
			}
		case KindTable:
			if err := decodeOptional(rs.Content, &seg.Rows); err != nil {
				return nil, fmt.Errorf("%w: page %d segment %d: %v", apperrors.ErrMalformedPage, pageNum, i, err)
			}
		}
		doc.Segments = append(doc.Segments, seg)
	}
	return doc, nil
}

func decodeOptional(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// FlattenTable joins each row's cells with spaces, applies fn to every row,
// and joins the rows with newlines.
func FlattenTable(rows [][]string, fn func(string) string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := strings.Join(row, " ")
		if fn != nil {
			line = fn(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
