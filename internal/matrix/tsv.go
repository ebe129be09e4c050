package matrix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteTSV writes one line per item, counts separated by tabs, each line
// terminated by a newline. Category labels are not written.
func WriteTSV(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	for _, row := range m.Rows {
		fields := make([]string, len(row))
		for i, x := range row {
			fields[i] = strconv.Itoa(x)
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTSV parses the format produced by WriteTSV. Blank lines are ignored.
func ReadTSV(r io.Reader) (*Matrix, error) {
	m := &Matrix{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		row := make([]int, len(fields))
		for i, f := range fields {
			x, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = x
		}
		m.Append(row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tsv: %w", err)
	}
	return m, nil
}

// TSVPath appends the .tsv extension unless the name already carries it.
func TSVPath(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return name
	}
	return name + ".tsv"
}

// SaveTSV writes m to path (see TSVPath), creating parent directories.
func SaveTSV(path string, m *Matrix) (string, error) {
	path = TSVPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteTSV(f, m); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}

// LoadTSV reads a matrix from a TSV file.
func LoadTSV(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTSV(f)
}
