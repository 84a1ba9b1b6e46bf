package filterjob

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	maxRunIDLength = 128
	maxTermsLength = 4096
)

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Validate checks a filter request. The run ID becomes part of a file name,
// so it is restricted to letters, digits, '-' and '_'.
func Validate(req *Request) error {
	errs := make(map[string]string)

	switch {
	case req.RunID == "":
		errs["run_id"] = "run_id is required"
	case len(req.RunID) > maxRunIDLength:
		errs["run_id"] = fmt.Sprintf("run_id must be at most %d characters", maxRunIDLength)
	case !runIDPattern.MatchString(req.RunID):
		errs["run_id"] = "run_id may only contain letters, digits, '-' and '_'"
	}

	path := strings.TrimSpace(req.Path)
	switch {
	case path == "":
		errs["path"] = "path is required"
	case !filepath.IsAbs(path):
		errs["path"] = "path must be absolute"
	case filepath.Clean(path) != path:
		errs["path"] = "path must be clean"
	}

	terms := strings.TrimSpace(req.Terms)
	switch {
	case terms == "":
		errs["terms"] = "terms are required"
	case len(terms) > maxTermsLength:
		errs["terms"] = fmt.Sprintf("terms must be at most %d characters", maxTermsLength)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
