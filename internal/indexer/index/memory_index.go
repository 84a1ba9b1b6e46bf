package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/normalizer"
)

// MemoryIndex accumulates the postings of a build before they are written to
// a segment. It is safe for concurrent AddUnit calls.
type MemoryIndex struct {
	mu    sync.Mutex
	index map[string]map[string]*Posting
	units map[string]Unit
	maxN  int
	size  int64
}

func NewMemoryIndex(maxN int) *MemoryIndex {
	if maxN <= 0 {
		maxN = normalizer.MaxNGram
	}
	return &MemoryIndex{
		index: make(map[string]map[string]*Posting),
		units: make(map[string]Unit),
		maxN:  maxN,
	}
}

// AddUnit shingles every field of a unit and records the postings. fields
// maps a field name to already normalized text. A field holding only
// punctuation or symbols still makes a unit, with no grams. It returns false
// when every field is blank, in which case nothing is recorded.
func (m *MemoryIndex) AddUnit(page, segment int, fields map[string]string) (bool, error) {
	id := UnitID(page, segment)
	termData := make(map[string]*Posting)
	lengths := make(map[string]int, len(fields))
	for field, text := range fields {
		if strings.TrimSpace(text) == "" {
			continue
		}
		grams := normalizer.Shingles(normalizer.Analyze(text), m.maxN)
		lengths[field] = len(grams)
		for _, gram := range grams {
			key := Key(field, gram)
			p, exists := termData[key]
			if !exists {
				p = &Posting{UnitID: id}
				termData[key] = p
			}
			p.Frequency++
		}
	}
	if len(lengths) == 0 {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.units[id]; exists {
		return false, fmt.Errorf("duplicate index unit %s", id)
	}
	for key, posting := range termData {
		if _, exists := m.index[key]; !exists {
			m.index[key] = make(map[string]*Posting)
		}
		m.index[key][id] = posting
		m.size += int64(len(key) + len(id) + 16)
	}
	m.units[id] = Unit{ID: id, Page: page, Segment: segment, Fields: lengths}
	return true, nil
}

// Snapshot returns every dictionary entry sorted by key, with postings sorted
// by unit ID.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]TermEntry, 0, len(m.index))
	for key, units := range m.index {
		postings := make(PostingList, 0, len(units))
		for _, posting := range units {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].UnitID < postings[j].UnitID
		})
		entries = append(entries, TermEntry{
			Key:      key,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// Units returns the recorded units ordered by page, then segment.
func (m *MemoryIndex) Units() []Unit {
	m.mu.Lock()
	defer m.mu.Unlock()
	units := make([]Unit, 0, len(m.units))
	for _, u := range m.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].Page != units[j].Page {
			return units[i].Page < units[j].Page
		}
		return units[i].Segment < units[j].Segment
	})
	return units
}

func (m *MemoryIndex) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}
