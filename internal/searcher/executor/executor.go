// Package executor evaluates a QueryPlan against an index and scores every
// matching unit with TF-IDF.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
)

// Index is the read side of a built index.
type Index interface {
	Search(field, gram string) (index.PostingList, error)
	UnitCount() int
}

// Hit is one scored unit.
type Hit struct {
	UnitID string  `json:"id"`
	Score  float64 `json:"score"`
}

// termPostings holds, per unit, the frequency of one query term summed over
// the fields it is scoped to.
type termPostings map[string]int

type Executor struct {
	logger *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Evaluate runs plan against idx. The unscoped sentinel term is always added
// to the included terms, so only units holding at least one folded number
// can match. Units must contain every included term and no excluded term.
//
// The returned hits are in unit ID order, which is not a ranking; callers
// sort.
func (e *Executor) Evaluate(ctx context.Context, plan *parser.QueryPlan, idx Index) ([]Hit, error) {
	if plan.IsNoop() {
		return nil, nil
	}
	included := withSentinel(plan.Included)

	postingsPerTerm := make([]termPostings, 0, len(included))
	for _, term := range included {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tp, err := lookup(idx, term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		if len(tp) == 0 {
			e.logger.Debug("term has no postings", "term", term.String())
			return []Hit{}, nil
		}
		postingsPerTerm = append(postingsPerTerm, tp)
	}

	candidates := intersect(postingsPerTerm)
	for _, term := range plan.Excluded {
		tp, err := lookup(idx, term)
		if err != nil {
			return nil, fmt.Errorf("searching exclude term %q: %w", term, err)
		}
		for unitID := range tp {
			delete(candidates, unitID)
		}
	}

	hits := score(candidates, postingsPerTerm, idx.UnitCount())
	e.logger.Debug("query evaluated",
		"included", len(included),
		"excluded", len(plan.Excluded),
		"hits", len(hits),
	)
	return hits, nil
}

// withSentinel appends the unscoped sentinel unless a term already looks up
// the sentinel gram, in any field.
func withSentinel(terms []parser.Term) []parser.Term {
	sentinel := parser.Term{Value: normalizer.Sentinel}
	want, _ := normalizer.Term(sentinel.Value)
	for _, t := range terms {
		if gram, ok := normalizer.Term(t.Value); ok && gram == want {
			return terms
		}
	}
	out := make([]parser.Term, 0, len(terms)+1)
	out = append(out, terms...)
	return append(out, sentinel)
}

func lookup(idx Index, term parser.Term) (termPostings, error) {
	gram, ok := normalizer.Term(term.Value)
	if !ok {
		return nil, nil
	}
	fields := index.Fields
	if term.Field != "" {
		fields = []string{term.Field}
	}
	tp := make(termPostings)
	for _, field := range fields {
		postings, err := idx.Search(field, gram)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			tp[p.UnitID] += p.Frequency
		}
	}
	return tp, nil
}

func intersect(postingsPerTerm []termPostings) map[string]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[string]struct{})
	}
	shortest := 0
	for i, tp := range postingsPerTerm {
		if len(tp) < len(postingsPerTerm[shortest]) {
			shortest = i
		}
	}
	candidates := make(map[string]struct{}, len(postingsPerTerm[shortest]))
	for unitID := range postingsPerTerm[shortest] {
		candidates[unitID] = struct{}{}
	}
	for i, tp := range postingsPerTerm {
		if i == shortest {
			continue
		}
		for unitID := range candidates {
			if _, exists := tp[unitID]; !exists {
				delete(candidates, unitID)
			}
		}
	}
	return candidates
}
