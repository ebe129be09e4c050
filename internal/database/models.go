package database

import "github.com/TobiSchelling/kappacheck/internal/kappa"

// Run is one stored kappa estimation.
type Run struct {
	ID               int64
	RunID            string
	Source           string
	Kind             string // "free" or "fixed"
	Matcher          string
	Items            int
	Categories       int
	Raters           int
	PercentAgreement float64
	Kappa            float64
	CILower          float64
	CIUpper          float64
	ChanceAgreement  float64
	StdErr           float64
	Confidence       float64
	CategoryLabels   []string
	ItemAgreement    []float64
	ComputedAt       *string
}

// NewRun builds a Run from an estimation report.
func NewRun(source, matcher string, labels []string, r *kappa.Report) *Run {
	return &Run{
		Source:           source,
		Kind:             string(r.Kind),
		Matcher:          matcher,
		Items:            r.Items,
		Categories:       r.Categories,
		Raters:           r.Raters,
		PercentAgreement: r.PercentAgreement,
		Kappa:            r.Kappa,
		CILower:          r.CI.Lower,
		CIUpper:          r.CI.Upper,
		ChanceAgreement:  r.ChanceAgreement,
		StdErr:           r.StdErr,
		Confidence:       r.Confidence,
		CategoryLabels:   labels,
		ItemAgreement:    r.ItemAgreement,
	}
}

// Report converts the stored run back into an estimation report.
func (r *Run) Report() *kappa.Report {
	return &kappa.Report{
		Kind:             kappa.Kind(r.Kind),
		PercentAgreement: r.PercentAgreement,
		Kappa:            r.Kappa,
		CI:               kappa.Interval{Lower: r.CILower, Upper: r.CIUpper},
		Confidence:       r.Confidence,
		ChanceAgreement:  r.ChanceAgreement,
		StdErr:           r.StdErr,
		Items:            r.Items,
		Categories:       r.Categories,
		Raters:           r.Raters,
		ItemAgreement:    r.ItemAgreement,
	}
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalRuns int
	Sources   int
	FreeRuns  int
	FixedRuns int
	MeanKappa *float64
	LastRunAt *string
}
