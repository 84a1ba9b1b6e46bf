package index

import (
	"fmt"
	"strconv"
	"strings"
)

// Logical fields of an index unit.
const (
	FieldText  = "text"
	FieldTable = "table"
)

// Fields lists every field an unscoped term is looked up in.
var Fields = []string{FieldText, FieldTable}

type Posting struct {
	UnitID    string `json:"u"`
	Frequency int    `json:"f"`
}

type PostingList []Posting

type TermEntry struct {
	Key      string
	Postings PostingList
}

// Unit describes one indexed content segment and the number of grams each of
// its fields contributed.
type Unit struct {
	ID      string         `json:"id"`
	Page    int            `json:"page"`
	Segment int            `json:"segment"`
	Fields  map[string]int `json:"fields"`
}

// Key builds the dictionary key for a gram inside a field.
func Key(field, gram string) string {
	return field + ":" + gram
}

// UnitID formats the identifier of the unit for a page segment.
func UnitID(page, segment int) string {
	return strconv.Itoa(page) + "-" + strconv.Itoa(segment)
}

// ParseUnitID splits a "<page>-<segment>" identifier.
func ParseUnitID(id string) (page int, segment int, err error) {
	p, s, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed unit id %q", id)
	}
	if page, err = strconv.Atoi(p); err != nil {
		return 0, 0, fmt.Errorf("malformed page in unit id %q: %w", id, err)
	}
	if segment, err = strconv.Atoi(s); err != nil {
		return 0, 0, fmt.Errorf("malformed segment in unit id %q: %w", id, err)
	}
	return page, segment, nil
}
