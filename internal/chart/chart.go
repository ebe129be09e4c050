// Package chart draws per-item agreement for a kappa report.
package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/TobiSchelling/kappacheck/internal/kappa"
)

// maxTickLabels is the item count above which bars are left unlabelled.
const maxTickLabels = 30

var (
	barColor  = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	meanColor = color.RGBA{R: 200, G: 60, B: 40, A: 255}
)

// FileName returns "<name>_<kind>_agreement.png" with any extension
// stripped from name.
func FileName(name string, kind kappa.Kind) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return fmt.Sprintf("%s_%s_agreement.png", base, kind)
}

// Agreement builds a bar chart of each item's pairwise agreement with a
// dashed line at the overall mean.
func Agreement(r *kappa.Report, title string) (*plot.Plot, error) {
	if len(r.ItemAgreement) == 0 {
		return nil, fmt.Errorf("report has no item agreement to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Item"
	p.Y.Label.Text = "Pairwise agreement"
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(plotter.Values(r.ItemAgreement), vg.Points(8))
	if err != nil {
		return nil, fmt.Errorf("building bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	mean := r.PercentAgreement / 100
	n := float64(len(r.ItemAgreement))
	line, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: mean}, {X: n - 0.5, Y: mean}})
	if err != nil {
		return nil, fmt.Errorf("building mean line: %w", err)
	}
	line.Color = meanColor
	line.Width = vg.Points(1.5)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("mean %.2f", mean), line)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if len(r.ItemAgreement) <= maxTickLabels {
		names := make([]string, len(r.ItemAgreement))
		for i := range names {
			names[i] = strconv.Itoa(i + 1)
		}
		p.NominalX(names...)
	}

	return p, nil
}

// Title is the default chart heading for a report.
func Title(source string, r *kappa.Report) string {
	return fmt.Sprintf("%s: %s kappa = %.2f (n=%d, r=%d)",
		filepath.Base(source), strings.ToLower(r.Kind.Label()), r.Kappa, r.Items, r.Raters)
}

// Save renders the agreement chart for source into dir and returns the
// written path.
func Save(dir, source string, r *kappa.Report) (string, error) {
	p, err := Agreement(r, Title(source, r))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating chart directory: %w", err)
	}

	width := 6 * vg.Inch
	if len(r.ItemAgreement) > 40 {
		width = 12 * vg.Inch
	}
	path := filepath.Join(dir, FileName(source, r.Kind))
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("saving chart: %w", err)
	}
	return path, nil
}
