package kappa

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/TobiSchelling/kappacheck/internal/format"
)

// ConfidenceLabel formats a confidence level as a percentage, e.g. "95%".
func ConfidenceLabel(level float64) string {
	return strconv.FormatFloat(math.Round(level*1000)/10, 'f', -1, 64) + "%"
}

// Summary renders the three-line report:
//
//	Percent overall agreement = 87.50%
//	Free-marginal kappa = 0.75
//	95% CI for free-marginal kappa = [0.51,0.99]
func Summary(r *Report) string {
	name := strings.ToLower(r.Kind.Label())
	var b strings.Builder
	fmt.Fprintf(&b, "Percent overall agreement = %.2f%%\n", r.PercentAgreement)
	fmt.Fprintf(&b, "%s kappa = %.2f\n", r.Kind.Label(), r.Kappa)
	fmt.Fprintf(&b, "%s CI for %s kappa = [%.2f,%.2f]\n", ConfidenceLabel(r.Confidence), name, r.CI.Lower, r.CI.Upper)
	return b.String()
}

// Table renders several reports side by side, one row per report.
func Table(source string, reports []*Report, mode format.Mode) string {
	t := format.NewTable(mode)
	t.Header("Source", "Kappa", "Items", "Raters", "Categories", "Agreement", "κ", "CI")
	t.AlignRight(3, 4, 5, 6, 7)
	for _, r := range reports {
		t.Row(
			source,
			r.Kind.Label(),
			r.Items,
			r.Raters,
			r.Categories,
			fmt.Sprintf("%.2f%%", r.PercentAgreement),
			fmt.Sprintf("%.3f", r.Kappa),
			fmt.Sprintf("%s [%.2f, %.2f]", ConfidenceLabel(r.Confidence), r.CI.Lower, r.CI.Upper),
		)
	}
	return t.String()
}

// Markdown renders a single report as a Markdown section with a detail table.
func Markdown(r *Report, categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s kappa\n\n", r.Kind.Label())
	fmt.Fprintf(&b, "**κ = %.3f**, %s CI [%.3f, %.3f]\n\n", r.Kappa, ConfidenceLabel(r.Confidence), r.CI.Lower, r.CI.Upper)

	t := format.NewTable(format.Markdown)
	t.Header("Statistic", "Value")
	t.Row("Percent overall agreement", fmt.Sprintf("%.2f%%", r.PercentAgreement))
	t.Row("Chance agreement (pe)", fmt.Sprintf("%.4f", r.ChanceAgreement))
	t.Row("Standard error", fmt.Sprintf("%.4f", r.StdErr))
	t.Row("Items", r.Items)
	t.Row("Raters per item", r.Raters)
	t.Row("Categories", r.Categories)
	b.WriteString(t.String())
	b.WriteString("\n")

	if len(categories) > 0 {
		fmt.Fprintf(&b, "\nCategories: %s\n", strings.Join(categories, ", "))
	}
	return b.String()
}
