// Package kappa computes Randolph's free-marginal and Fleiss's fixed-marginal
// kappa from a rating-count matrix, with large-sample confidence intervals.
//
// Formulas follow the Online Kappa Calculator (http://justusrandolph.net/kappa/).
package kappa

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/TobiSchelling/kappacheck/internal/matrix"
)

// Z95 is the two-tailed 97.5th percentile of the standard normal distribution.
const Z95 = 1.959964

// DefaultConfidence is the confidence level used when Options leaves it unset.
const DefaultConfidence = 0.95

var (
	// ErrDegenerate is returned when the input makes a formula undefined.
	ErrDegenerate = errors.New("degenerate rating matrix")
	// ErrRaterMismatch is returned when items were rated by different numbers of raters.
	ErrRaterMismatch = fmt.Errorf("%w: rater count differs between items", ErrDegenerate)
)

// Kind selects the chance-agreement model.
type Kind string

const (
	Free  Kind = "free"
	Fixed Kind = "fixed"
)

// Label returns the human-readable estimator name.
func (k Kind) Label() string {
	switch k {
	case Free:
		return "Free-marginal"
	case Fixed:
		return "Fixed-marginal"
	default:
		return string(k)
	}
}

// ParseKind parses "free", "fixed" or "both". "both" yields both kinds.
func ParseKind(s string) ([]Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return []Kind{Free}, nil
	case "fixed":
		return []Kind{Fixed}, nil
	case "both":
		return []Kind{Free, Fixed}, nil
	default:
		return nil, fmt.Errorf(`unknown kappa kind %q: use "free" for Randolph's free-marginal kappa or "fixed" for Fleiss's fixed-marginal kappa`, s)
	}
}

// Interval is a confidence interval with both bounds in [-1, 1].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Report is the result of one estimation.
type Report struct {
	Kind             Kind      `json:"kind"`
	PercentAgreement float64   `json:"pa"`
	Kappa            float64   `json:"kappa"`
	CI               Interval  `json:"ci"`
	Confidence       float64   `json:"confidence"`
	ChanceAgreement  float64   `json:"pe"`
	StdErr           float64   `json:"se"`
	Items            int       `json:"items"`
	Categories       int       `json:"categories"`
	Raters           int       `json:"raters"`
	ItemAgreement    []float64 `json:"item_agreement"`
}

// Options tunes the estimators.
type Options struct {
	// Confidence is the two-sided confidence level; 0 means 0.95.
	Confidence float64
}

// ZFor returns the two-tailed normal quantile for a confidence level.
// 0.95 maps to Z95 exactly.
func ZFor(confidence float64) (float64, error) {
	if confidence == 0 || confidence == DefaultConfidence {
		return Z95, nil
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("confidence %v out of range (0, 1)", confidence)
	}
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2), nil
}

func (o Options) level() float64 {
	if o.Confidence == 0 {
		return DefaultConfidence
	}
	return o.Confidence
}

// Estimate dispatches to Randolph or Fleiss by kind.
func Estimate(kind Kind, m *matrix.Matrix, opts Options) (*Report, error) {
	switch kind {
	case Free:
		return Randolph(m, opts)
	case Fixed:
		return Fleiss(m, opts)
	default:
		return nil, fmt.Errorf("unknown kappa kind %q", kind)
	}
}

// agreement holds the quantities shared by both estimators.
type agreement struct {
	n, q, r int
	pai     []float64
	pa      float64
}

func observe(m *matrix.Matrix) (*agreement, error) {
	if m == nil || m.Items() == 0 {
		return nil, fmt.Errorf("%w: no items", ErrDegenerate)
	}
	r := m.Raters()
	if r < 2 {
		return nil, fmt.Errorf("%w: %d rater(s) on item 0, need at least 2", ErrDegenerate, r)
	}
	if err := m.Validate(); err != nil {
		var rm *matrix.RaterMismatchError
		if errors.As(err, &rm) {
			return nil, fmt.Errorf("%w: %w", ErrRaterMismatch, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDegenerate, err)
	}

	a := &agreement{n: m.Items(), q: m.Width(), r: r, pai: make([]float64, m.Items())}
	pairs := float64(r * (r - 1))
	for i, row := range m.Rows {
		var s int
		for _, x := range row {
			s += x * (x - 1)
		}
		a.pai[i] = float64(s) / pairs
	}
	a.pa = stat.Mean(a.pai, nil)
	return a, nil
}

// Randolph computes free-marginal kappa, where chance agreement is 1/q.
func Randolph(m *matrix.Matrix, opts Options) (*Report, error) {
	z, err := ZFor(opts.Confidence)
	if err != nil {
		return nil, err
	}
	a, err := observe(m)
	if err != nil {
		return nil, err
	}
	if a.n <= 1 {
		return nil, fmt.Errorf("%w: free-marginal variance needs at least 2 items, got %d", ErrDegenerate, a.n)
	}
	if a.q <= 1 {
		return nil, fmt.Errorf("%w: free-marginal kappa needs at least 2 categories, got %d", ErrDegenerate, a.q)
	}

	q, n := float64(a.q), float64(a.n)
	pe := 1 / q
	k := (a.pa - pe) / (1 - pe)

	dev := append([]float64(nil), a.pai...)
	floats.AddConst(-a.pa, dev)
	ss := floats.Dot(dev, dev)
	denom := math.Pow(1-1/q, 2) * (n - 1) * n
	se := math.Sqrt(ss / denom)

	return a.report(Free, pe, k, se, z, opts.level()), nil
}

// Fleiss computes fixed-marginal kappa, where chance agreement comes from
// each category's share of all ratings.
func Fleiss(m *matrix.Matrix, opts Options) (*Report, error) {
	z, err := ZFor(opts.Confidence)
	if err != nil {
		return nil, err
	}
	a, err := observe(m)
	if err != nil {
		return nil, err
	}

	n, r := float64(a.n), float64(a.r)
	totals := m.ColumnTotals()
	p2 := make([]float64, len(totals))
	p3 := make([]float64, len(totals))
	for c, t := range totals {
		p := float64(t) / (n * r)
		p2[c] = p * p
		p3[c] = p * p * p
	}
	pe := floats.Sum(p2)
	pe3 := floats.Sum(p3)
	if pe >= 1 {
		return nil, fmt.Errorf("%w: all ratings fall in one category (pe = 1)", ErrDegenerate)
	}

	k := (a.pa - pe) / (1 - pe)

	v1 := 2 / (n * r * (r - 1))
	vn := pe - (2*r-3)*pe*pe + 2*(r-2)*pe3
	vd := (1 - pe) * (1 - pe)
	variance := v1 * (vn / vd)
	if variance < 0 {
		return nil, fmt.Errorf("%w: negative variance %g", ErrDegenerate, variance)
	}
	se := math.Sqrt(variance)

	return a.report(Fixed, pe, k, se, z, opts.level()), nil
}

func (a *agreement) report(kind Kind, pe, k, se, z, level float64) *Report {
	return &Report{
		Kind:             kind,
		PercentAgreement: a.pa * 100,
		Kappa:            k,
		CI:               Interval{Lower: clamp(k - z*se), Upper: clamp(k + z*se)},
		Confidence:       level,
		ChanceAgreement:  pe,
		StdErr:           se,
		Items:            a.n,
		Categories:       a.q,
		Raters:           a.r,
		ItemAgreement:    a.pai,
	}
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
