// Package parser turns the keyword list of a filter query into a QueryPlan.
//
// A token starting with "table:" or "text:" switches the current field for
// that token and every token after it. A term starting with "_" is
// excluded; anything else is included.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/shlex"
)

const (
	FieldPrefixTable = "table:"
	FieldPrefixText  = "text:"
	ExcludePrefix    = "_"
)

// Term is a query term, optionally scoped to one field. An empty Field
// matches every field.
type Term struct {
	Field string `json:"field,omitempty"`
	Value string `json:"value"`
}

func (t Term) String() string {
	if t.Field == "" {
		return t.Value
	}
	return t.Field + ":" + t.Value
}

type QueryPlan struct {
	Included []Term `json:"and"`
	Excluded []Term `json:"not"`
}

// IsNoop reports whether the plan has nothing to include. Such a plan has no
// results and is never evaluated.
func (p *QueryPlan) IsNoop() bool {
	return len(p.Included) == 0
}

// Canonical renders the plan as JSON, used as a cache key. Term values are
// quoted, so separators inside a term cannot merge two plans.
func (p *QueryPlan) Canonical() string {
	data, _ := json.Marshal(p) // strings only, cannot fail
	return string(data)
}

func Parse(tokens []string) *QueryPlan {
	plan := &QueryPlan{
		Included: make([]Term, 0, len(tokens)),
		Excluded: make([]Term, 0),
	}
	seenInc := make(map[Term]struct{})
	seenExc := make(map[Term]struct{})
	field := ""
	for _, token := range tokens {
		switch {
		case strings.HasPrefix(token, FieldPrefixTable):
			field = strings.TrimSuffix(FieldPrefixTable, ":")
			token = token[len(FieldPrefixTable):]
		case strings.HasPrefix(token, FieldPrefixText):
			field = strings.TrimSuffix(FieldPrefixText, ":")
			token = token[len(FieldPrefixText):]
		}
		if strings.HasPrefix(token, ExcludePrefix) {
			term := Term{Field: field, Value: token[len(ExcludePrefix):]}
			if term.Value == "" {
				continue
			}
			if _, dup := seenExc[term]; !dup {
				seenExc[term] = struct{}{}
				plan.Excluded = append(plan.Excluded, term)
			}
			continue
		}
		if token == "" {
			continue
		}
		term := Term{Field: field, Value: token}
		if _, dup := seenInc[term]; !dup {
			seenInc[term] = struct{}{}
			plan.Included = append(plan.Included, term)
		}
	}
	return plan
}

// SplitTerms splits a free-form terms string the way a shell would and
// rewrites a leading "-" to the exclusion prefix, so `-scope "GHG emissions"`
// becomes ["_scope", "GHG emissions"].
func SplitTerms(terms string) ([]string, error) {
	words, err := shlex.Split(terms)
	if err != nil {
		return nil, fmt.Errorf("splitting terms: %w", err)
	}
	for i, w := range words {
		if strings.HasPrefix(w, "-") {
			words[i] = ExcludePrefix + w[1:]
		}
	}
	return words, nil
}
