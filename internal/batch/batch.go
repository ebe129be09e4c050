// Package batch splits a record file (RIS export) into batches for raters.
// Records are separated by a blank line.
package batch

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// Separator joins records in input and output files.
const Separator = "\n\n"

// DefaultSeed makes random splits reproducible when no seed is given.
const DefaultSeed uint64 = 1111

// Extension is the file extension of written batches.
const Extension = ".ris"

// SplitRecords splits text on blank lines, dropping a trailing empty record.
func SplitRecords(text string) []string {
	records := strings.Split(text, Separator)
	if len(records) > 0 && records[len(records)-1] == "" {
		records = records[:len(records)-1]
	}
	return records
}

// Sequential cuts records into consecutive batches of at most size records.
func Sequential(records []string, size int) ([][]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	var batches [][]string
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end])
	}
	return batches, nil
}

// Random shuffles records with a seeded generator and then cuts them like
// Sequential. The same seed and input always give the same batches.
func Random(records []string, size int, seed uint64) ([][]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	shuffled := make([]string, len(records))
	for i, j := range rng.Perm(len(records)) {
		shuffled[i] = records[j]
	}
	return Sequential(shuffled, size)
}

// Write stores each batch as batch_<i>.ris (1-based) under dir and returns
// the written paths.
func Write(batches [][]string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	paths := make([]string, 0, len(batches))
	for i, b := range batches {
		path := filepath.Join(dir, fmt.Sprintf("batch_%d%s", i+1, Extension))
		body := strings.Join(b, Separator) + Separator
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	log.Printf("Wrote %d batches to %s", len(batches), dir)
	return paths, nil
}

// Options selects how a file is split.
type Options struct {
	Size      int
	Randomize bool
	Seed      uint64
	OutputDir string
}

// SplitFile reads path, splits it and writes the batches.
func SplitFile(path string, opts Options) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	records := SplitRecords(string(data))

	var batches [][]string
	if opts.Randomize {
		batches, err = Random(records, opts.Size, opts.Seed)
	} else {
		batches, err = Sequential(records, opts.Size)
	}
	if err != nil {
		return nil, err
	}
	return Write(batches, opts.OutputDir)
}
