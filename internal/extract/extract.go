// Package extract turns free-text rater annotations into a rating-count matrix.
//
// Each row carries a field (conventionally "notes") holding a braced list of
// assessments such as
//
//	RAYYAN-INCLUSION: {"Alice"=>"Included", "Bob"=>"Excluded"}
//
// The set of categories is read from the first row only and then reused for
// every row, so categories that first appear later are not counted.
package extract

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/TobiSchelling/kappacheck/internal/matrix"
)

// DefaultField is the annotation column in Rayyan exports.
const DefaultField = "notes"

const (
	fragmentSep = ", "
	assignMark  = "=>"
)

// Row is one input record.
type Row interface {
	Field(name string) (string, bool)
}

// Record is a Row backed by a map of column name to value.
type Record map[string]string

// Field implements Row.
func (r Record) Field(name string) (string, bool) {
	v, ok := r[name]
	return v, ok
}

// Error reports a row whose annotation field could not be decoded.
type Error struct {
	Row    int
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Reason)
}

// CategorySet is the ordered list of category labels derived from the first row.
type CategorySet []string

// Options controls extraction.
type Options struct {
	Field     string
	Matcher   Matcher
	Normalize bool
}

// DefaultOptions returns the options matching the Rayyan export format:
// the "notes" column, substring counting and NFC normalisation.
func DefaultOptions() Options {
	return Options{Field: DefaultField, Matcher: SubstringMatcher{}, Normalize: true}
}

// Extract builds a rating-count matrix from rows, in row order.
func Extract(rows []Row, opts Options) (*matrix.Matrix, error) {
	if opts.Field == "" {
		opts.Field = DefaultField
	}
	if opts.Matcher == nil {
		opts.Matcher = SubstringMatcher{}
	}
	if len(rows) == 0 {
		return nil, &Error{Row: 0, Field: opts.Field, Reason: "no rows"}
	}

	var (
		cats CategorySet
		m    *matrix.Matrix
	)
	for i, row := range rows {
		region, err := decodeRow(i, row, opts)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			cats, err = CategorySetFrom(region)
			if err != nil {
				return nil, &Error{Row: i, Field: opts.Field, Reason: err.Error()}
			}
			m = matrix.New(cats)
		}
		m.Append(CountRow(region, cats, opts.Matcher))
	}
	return m, nil
}

// CountRow counts each category of cats in a decoded region.
func CountRow(region string, cats CategorySet, matcher Matcher) []int {
	counts := make([]int, len(cats))
	for c, label := range cats {
		counts[c] = matcher.Count(region, label)
	}
	return counts
}

func decodeRow(i int, row Row, opts Options) (string, error) {
	text, ok := row.Field(opts.Field)
	if !ok {
		return "", &Error{Row: i, Field: opts.Field, Reason: "field missing"}
	}
	if opts.Normalize {
		text = norm.NFC.String(text)
	}
	region, ok := Region(text)
	if !ok {
		return "", &Error{Row: i, Field: opts.Field, Reason: "no {...} region"}
	}
	return region, nil
}

// Region returns the text enclosed by the last '}' and the nearest '{'
// before it, with double quotes removed.
func Region(text string) (string, bool) {
	end := strings.LastIndex(text, "}")
	if end < 0 {
		return "", false
	}
	start := strings.LastIndex(text[:end], "{")
	if start < 0 {
		return "", false
	}
	return strings.ReplaceAll(text[start+1:end], `"`, ""), true
}

// CategorySetFrom splits a decoded region into assessments and collects the
// distinct text following "=>" in each, in first-appearance order.
func CategorySetFrom(region string) (CategorySet, error) {
	frags := splitFragments(region)
	seen := make(map[string]struct{}, len(frags))
	var cats CategorySet
	for _, f := range frags {
		cat, ok := categoryOf(f)
		if !ok {
			return nil, fmt.Errorf("assessment %q has no %q marker", f, assignMark)
		}
		if cat == "" {
			return nil, fmt.Errorf("assessment %q has an empty category", f)
		}
		if _, dup := seen[cat]; dup {
			continue
		}
		seen[cat] = struct{}{}
		cats = append(cats, cat)
	}
	return cats, nil
}

func splitFragments(region string) []string {
	return strings.Split(region, fragmentSep)
}

func categoryOf(fragment string) (string, bool) {
	_, cat, ok := strings.Cut(fragment, assignMark)
	return cat, ok
}
