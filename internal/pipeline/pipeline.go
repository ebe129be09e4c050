package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/kappacheck/internal/chart"
	"github.com/TobiSchelling/kappacheck/internal/config"
	"github.com/TobiSchelling/kappacheck/internal/database"
	"github.com/TobiSchelling/kappacheck/internal/extract"
	"github.com/TobiSchelling/kappacheck/internal/kappa"
	"github.com/TobiSchelling/kappacheck/internal/matrix"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of processing one input file.
type Result struct {
	Source  string
	Matrix  *matrix.Matrix
	Reports []*kappa.Report
	RunIDs  []string
	Outputs []string
	Steps   []StepResult
}

// Err returns the first failed step's error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %s: %w", r.Source, strings.ToLower(s.Name), s.Err)
		}
	}
	return nil
}

func (r *Result) add(step StepResult) bool {
	r.Steps = append(r.Steps, step)
	return step.Err == nil
}

// Options selects what the pipeline computes and where outputs go.
type Options struct {
	Kinds      []kappa.Kind
	Extract    extract.Options
	Confidence float64
	// TSVDir and ChartDir are skipped when empty.
	TSVDir   string
	ChartDir string
	Store    bool
	Parallel int
}

// OptionsFromConfig derives pipeline options from the loaded config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	kinds, err := kappa.ParseKind(cfg.Kappa.Kind)
	if err != nil {
		return Options{}, err
	}
	matcher, err := extract.ParseMatcher(cfg.Extract.Matcher)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Kinds: kinds,
		Extract: extract.Options{
			Field:     cfg.Extract.Field,
			Matcher:   matcher,
			Normalize: cfg.Extract.Normalize,
		},
		Confidence: cfg.Kappa.Confidence,
		Store:      true,
		Parallel:   cfg.Kappa.Parallel,
	}, nil
}

// Pipeline turns annotated exports into kappa reports.
type Pipeline struct {
	db *database.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new pipeline. db may be nil, in which case nothing is stored.
func New(db *database.DB) *Pipeline {
	return &Pipeline{db: db, locks: make(map[string]*sync.Mutex)}
}

// RunAll processes every input, up to opts.Parallel at a time. Results are
// returned in input order. Inputs not yet started when ctx is cancelled
// get a failed "Read" step.
func (p *Pipeline) RunAll(ctx context.Context, paths []string, opts Options) []*Result {
	results := make([]*Result, len(paths))

	limit := max(opts.Parallel, 1)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = p.Run(gCtx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Run processes one CSV export: read, extract, estimate, then the optional
// TSV, chart and store steps.
func (p *Pipeline) Run(ctx context.Context, path string, opts Options) *Result {
	r := &Result{Source: path}

	if err := ctx.Err(); err != nil {
		r.add(StepResult{Name: "Read", Err: err})
		return r
	}

	log.Printf("Reading %s...", path)
	rows, err := extract.ReadCSVFile(path)
	if !r.add(StepResult{Name: "Read", Summary: fmt.Sprintf("%d rows", len(rows)), Err: err}) {
		return r
	}

	m, err := extract.Extract(rows, opts.Extract)
	if err != nil {
		r.add(StepResult{Name: "Extract", Err: err})
		return r
	}
	r.Matrix = m
	r.add(StepResult{
		Name:    "Extract",
		Summary: fmt.Sprintf("%d items x %d categories (%s)", m.Items(), m.Width(), strings.Join(m.Categories, ", ")),
	})

	p.finish(r, opts)
	return r
}

// RunTSV estimates kappa from a stored TSV matrix, skipping extraction.
func (p *Pipeline) RunTSV(ctx context.Context, path string, opts Options) *Result {
	r := &Result{Source: path}

	if err := ctx.Err(); err != nil {
		r.add(StepResult{Name: "Read", Err: err})
		return r
	}

	m, err := matrix.LoadTSV(path)
	if err != nil {
		r.add(StepResult{Name: "Read", Err: err})
		return r
	}
	r.Matrix = m
	r.add(StepResult{Name: "Read", Summary: fmt.Sprintf("%d items x %d categories", m.Items(), m.Width())})

	// A TSV carries no labels or matcher; never write it back over itself.
	opts.TSVDir = ""
	opts.Extract.Matcher = nil
	p.finish(r, opts)
	return r
}

func (p *Pipeline) finish(r *Result, opts Options) {
	if !p.estimate(r, opts) {
		return
	}
	if opts.TSVDir != "" {
		r.add(p.writeTSV(r, opts.TSVDir))
	}
	if opts.ChartDir != "" {
		r.add(p.writeCharts(r, opts.ChartDir))
	}
	if opts.Store && p.db != nil {
		r.add(p.store(r, opts))
	}
}

func (p *Pipeline) estimate(r *Result, opts Options) bool {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []kappa.Kind{kappa.Free}
	}

	var parts []string
	for _, kind := range kinds {
		rep, err := kappa.Estimate(kind, r.Matrix, kappa.Options{Confidence: opts.Confidence})
		if err != nil {
			return r.add(StepResult{Name: "Estimate", Err: fmt.Errorf("%s kappa: %w", kind, err)})
		}
		r.Reports = append(r.Reports, rep)
		parts = append(parts, fmt.Sprintf("%s kappa = %.2f", rep.Kind.Label(), rep.Kappa))
	}
	log.Printf("%s: %s", r.Source, strings.Join(parts, ", "))
	return r.add(StepResult{Name: "Estimate", Summary: strings.Join(parts, ", ")})
}

// lockFor returns the mutex guarding one output path.
func (p *Pipeline) lockFor(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	return l
}

func (p *Pipeline) writeTSV(r *Result, dir string) StepResult {
	base := strings.TrimSuffix(filepath.Base(r.Source), filepath.Ext(r.Source))
	target := matrix.TSVPath(filepath.Join(dir, base))

	l := p.lockFor(target)
	l.Lock()
	defer l.Unlock()

	path, err := matrix.SaveTSV(target, r.Matrix)
	if err != nil {
		return StepResult{Name: "TSV", Err: err}
	}
	r.Outputs = append(r.Outputs, path)
	return StepResult{Name: "TSV", Summary: "Wrote " + path}
}

func (p *Pipeline) writeCharts(r *Result, dir string) StepResult {
	var written []string
	for _, rep := range r.Reports {
		target := filepath.Join(dir, chart.FileName(r.Source, rep.Kind))
		l := p.lockFor(target)
		l.Lock()
		path, err := chart.Save(dir, r.Source, rep)
		l.Unlock()
		if err != nil {
			return StepResult{Name: "Chart", Err: err}
		}
		written = append(written, path)
	}
	r.Outputs = append(r.Outputs, written...)
	return StepResult{Name: "Chart", Summary: "Wrote " + strings.Join(written, ", ")}
}

func (p *Pipeline) store(r *Result, opts Options) StepResult {
	matcher := ""
	if opts.Extract.Matcher != nil {
		matcher = opts.Extract.Matcher.Name()
	}
	source := r.Source
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}

	for _, rep := range r.Reports {
		id, err := p.db.InsertRun(database.NewRun(source, matcher, r.Matrix.Categories, rep))
		if err != nil {
			return StepResult{Name: "Store", Err: err}
		}
		r.RunIDs = append(r.RunIDs, id)
	}
	return StepResult{Name: "Store", Summary: fmt.Sprintf("Stored %d run(s)", len(r.RunIDs))}
}

// CheckInputs returns an error naming every path that does not exist.
func CheckInputs(paths []string) error {
	var errs []error
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("input %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
