package matrix

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTSVRoundTrip(t *testing.T) {
	m := &Matrix{Rows: [][]int{{2, 0, 1}, {0, 3, 0}, {1, 1, 1}}}

	var buf bytes.Buffer
	if err := WriteTSV(&buf, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "2\t0\t1\n0\t3\t0\n1\t1\t1\n"; got != want {
		t.Errorf("unexpected tsv %q, want %q", got, want)
	}

	back, err := ReadTSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(m.Rows, back.Rows); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTSVRejectsGarbage(t *testing.T) {
	_, err := ReadTSV(bytes.NewBufferString("1\t2\nx\t1\n"))
	if err == nil {
		t.Fatal("expected error for non-numeric cell")
	}
}

func TestReadTSVSkipsBlankLines(t *testing.T) {
	m, err := ReadTSV(bytes.NewBufferString("1\t1\r\n\n2\t0\n\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]int{{1, 1}, {2, 0}}, m.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoadTSV(t *testing.T) {
	dir := t.TempDir()
	m := &Matrix{Categories: []string{"Included", "Excluded"}, Rows: [][]int{{2, 0}, {1, 1}}}

	path, err := SaveTSV(filepath.Join(dir, "out", "ratings"), m)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "ratings.tsv" {
		t.Errorf("expected .tsv suffix, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	back, err := LoadTSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(m.Rows, back.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTSVPath(t *testing.T) {
	if got := TSVPath("a/b.tsv"); got != "a/b.tsv" {
		t.Errorf("got %q", got)
	}
	if got := TSVPath("a/b"); got != "a/b.tsv" {
		t.Errorf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	ok := &Matrix{Rows: [][]int{{2, 1}, {0, 3}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	mismatch := &Matrix{Rows: [][]int{{2, 1}, {0, 2}}}
	err := mismatch.Validate()
	var rm *RaterMismatchError
	if !errors.As(err, &rm) {
		t.Fatalf("expected RaterMismatchError, got %v", err)
	}
	if rm.Item != 1 || rm.Got != 2 || rm.Want != 3 {
		t.Errorf("unexpected mismatch details: %+v", rm)
	}
	if !errors.Is(err, ErrInconsistent) {
		t.Error("expected mismatch to wrap ErrInconsistent")
	}

	ragged := &Matrix{Rows: [][]int{{2, 1}, {3}}}
	if err := ragged.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected ragged error, got %v", err)
	}

	negative := &Matrix{Rows: [][]int{{3, 0}, {4, -1}}}
	if err := negative.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected negative count error, got %v", err)
	}

	if err := (&Matrix{}).Validate(); !errors.Is(err, ErrInconsistent) {
		t.Errorf("expected empty error, got %v", err)
	}
}

func TestColumnTotalsAndClone(t *testing.T) {
	m := &Matrix{Categories: []string{"a", "b"}, Rows: [][]int{{2, 1}, {0, 3}}}
	if diff := cmp.Diff([]int{2, 4}, m.ColumnTotals()); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}

	c := m.Clone()
	c.Rows[0][0] = 99
	if m.Rows[0][0] != 2 {
		t.Error("clone shares row storage with original")
	}
	if m.Raters() != 3 || m.Width() != 2 || m.Items() != 2 {
		t.Errorf("unexpected shape n=%d q=%d r=%d", m.Items(), m.Width(), m.Raters())
	}
}
