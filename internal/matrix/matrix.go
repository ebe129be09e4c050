package matrix

import (
	"errors"
	"fmt"
)

// ErrInconsistent is returned when a matrix breaks one of its shape invariants.
var ErrInconsistent = errors.New("inconsistent rating matrix")

// Matrix is a rating-count matrix: one row per item, one column per category,
// each cell the number of raters who put that item in that category.
type Matrix struct {
	// Categories holds the column labels. It may be empty for matrices read
	// back from a TSV file, which carries counts only.
	Categories []string
	Rows       [][]int
}

// New creates an empty matrix with the given column labels.
func New(categories []string) *Matrix {
	return &Matrix{Categories: categories}
}

// Append adds an item's count vector.
func (m *Matrix) Append(counts []int) {
	m.Rows = append(m.Rows, counts)
}

// Items returns the number of items (n).
func (m *Matrix) Items() int {
	return len(m.Rows)
}

// Width returns the number of categories (q), taken from the first item.
func (m *Matrix) Width() int {
	if len(m.Rows) == 0 {
		return len(m.Categories)
	}
	return len(m.Rows[0])
}

// Raters returns the rater count (r) implied by the first item.
func (m *Matrix) Raters() int {
	if len(m.Rows) == 0 {
		return 0
	}
	return sum(m.Rows[0])
}

// ColumnTotals returns the per-category total across all items.
func (m *Matrix) ColumnTotals() []int {
	totals := make([]int, m.Width())
	for _, row := range m.Rows {
		for c, x := range row {
			totals[c] += x
		}
	}
	return totals
}

// Validate checks that every row has the same width, holds no negative
// counts and sums to the same rater total as the first row.
func (m *Matrix) Validate() error {
	if len(m.Rows) == 0 {
		return fmt.Errorf("%w: no items", ErrInconsistent)
	}
	q := len(m.Rows[0])
	if len(m.Categories) > 0 && len(m.Categories) != q {
		return fmt.Errorf("%w: %d labels for %d columns", ErrInconsistent, len(m.Categories), q)
	}
	r := m.Raters()
	for i, row := range m.Rows {
		if len(row) != q {
			return fmt.Errorf("%w: item %d has %d columns, want %d", ErrInconsistent, i, len(row), q)
		}
		for c, x := range row {
			if x < 0 {
				return fmt.Errorf("%w: item %d column %d is negative (%d)", ErrInconsistent, i, c, x)
			}
		}
		if s := sum(row); s != r {
			return &RaterMismatchError{Item: i, Got: s, Want: r}
		}
	}
	return nil
}

// RaterMismatchError reports an item whose rater total differs from item 0.
type RaterMismatchError struct {
	Item int
	Got  int
	Want int
}

func (e *RaterMismatchError) Error() string {
	return fmt.Sprintf("item %d has %d ratings, expected %d (from item 0)", e.Item, e.Got, e.Want)
}

func (e *RaterMismatchError) Unwrap() error { return ErrInconsistent }

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{Categories: append([]string(nil), m.Categories...)}
	for _, row := range m.Rows {
		out.Rows = append(out.Rows, append([]int(nil), row...))
	}
	return out
}

func sum(xs []int) int {
	var s int
	for _, x := range xs {
		s += x
	}
	return s
}
