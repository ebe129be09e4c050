package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func notesRows(notes ...string) []Row {
	rows := make([]Row, len(notes))
	for i, n := range notes {
		rows[i] = Record{"title": "Record", "notes": n}
	}
	return rows
}

func TestExtractRayyanNotes(t *testing.T) {
	rows := notesRows(
		`RAYYAN-INCLUSION: {"Alice"=>"Included", "Bob"=>"Excluded"}`,
		`RAYYAN-INCLUSION: {"Alice"=>"Included", "Bob"=>"Included"}`,
		`RAYYAN-INCLUSION: {"Alice"=>"Excluded", "Bob"=>"Excluded"} | RAYYAN-LABELS: rct`,
	)

	m, err := Extract(rows, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Included", "Excluded"}, m.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	want := [][]int{{1, 1}, {2, 0}, {0, 2}}
	if diff := cmp.Diff(want, m.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	rows := notesRows(
		`{"A"=>"yes", "B"=>"no", "C"=>"maybe"}`,
		`{"A"=>"no", "B"=>"no", "C"=>"maybe"}`,
	)
	first, err := Extract(rows, DefaultOptions())
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := Extract(rows, DefaultOptions())
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("extraction not idempotent (-first +second):\n%s", diff)
	}
}

func TestExtractCategoriesOnlyFromFirstRow(t *testing.T) {
	rows := notesRows(
		`{"A"=>"yes", "B"=>"yes"}`,
		`{"A"=>"yes", "B"=>"unsure"}`,
	)
	m, err := Extract(rows, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "unsure" never entered the category set, so item 1 undercounts.
	if diff := cmp.Diff([][]int{{2}, {1}}, m.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchersDifferOnOverlappingLabels(t *testing.T) {
	rows := notesRows(`{"A"=>"Include", "B"=>"Included"}`)

	sub, err := Extract(rows, Options{Matcher: SubstringMatcher{}})
	if err != nil {
		t.Fatalf("substring extract: %v", err)
	}
	if diff := cmp.Diff([][]int{{2, 1}}, sub.Rows); diff != "" {
		t.Errorf("substring rows mismatch (-want +got):\n%s", diff)
	}

	exact, err := Extract(rows, Options{Matcher: ExactMatcher{}})
	if err != nil {
		t.Fatalf("exact extract: %v", err)
	}
	if diff := cmp.Diff([][]int{{1, 1}}, exact.Rows); diff != "" {
		t.Errorf("exact rows mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractNormalizesUnicode(t *testing.T) {
	rows := notesRows(
		"{\"A\"=>\"Caf\u00e9\", \"B\"=>\"Other\"}",
		"{\"A\"=>\"Cafe\u0301\", \"B\"=>\"Cafe\u0301\"}",
	)

	m, err := Extract(rows, Options{Normalize: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{2, 0}, m.Rows[1]); diff != "" {
		t.Errorf("normalized row mismatch (-want +got):\n%s", diff)
	}

	raw, err := Extract(rows, Options{Normalize: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]int{0, 0}, raw.Rows[1]); diff != "" {
		t.Errorf("raw row mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		row  int
	}{
		{"no rows", nil, 0},
		{"no braces", notesRows(`{"A"=>"yes"}`, `plain text`), 1},
		{"missing field", []Row{Record{"title": "x"}}, 0},
		{"no marker", notesRows(`{"A" says yes}`), 0},
		{"empty category", notesRows(`{"A"=>""}`), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.rows, DefaultOptions())
			var xerr *Error
			if !errors.As(err, &xerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if xerr.Row != tt.row {
				t.Errorf("expected row %d, got %d", tt.row, xerr.Row)
			}
			if xerr.Field != "notes" {
				t.Errorf("expected field notes, got %q", xerr.Field)
			}
		})
	}
}

func TestRegion(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`x {"a"=>"b"} y`, "a=>b", true},
		{`{a} and {b}`, "b", true},
		{`{a}}`, "a}", true},
		{`{}`, "", true},
		{`no braces`, "", false},
		{`} before {`, "", false},
	}
	for _, tt := range tests {
		got, ok := Region(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Region(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategorySetFromKeepsFirstAppearanceOrder(t *testing.T) {
	cats, err := CategorySetFrom("A=>no, B=>yes, C=>no, D=>maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(CategorySet{"no", "yes", "maybe"}, cats); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMatcher(t *testing.T) {
	for name, want := range map[string]string{"": "substring", "Substring": "substring", "exact": "exact"} {
		m, err := ParseMatcher(name)
		if err != nil {
			t.Fatalf("ParseMatcher(%q): %v", name, err)
		}
		if m.Name() != want {
			t.Errorf("ParseMatcher(%q) = %s, want %s", name, m.Name(), want)
		}
	}
	if _, err := ParseMatcher("fuzzy"); err == nil {
		t.Error("expected error for unknown matcher")
	}
}

func TestReadCSV(t *testing.T) {
	data := "\ufeffkey,title,notes\n" +
		`1,"First","RAYYAN-INCLUSION: {""Alice""=>""Included"", ""Bob""=>""Excluded""}"` + "\n" +
		`2,"Second","RAYYAN-INCLUSION: {""Alice""=>""Included"", ""Bob""=>""Included""}"` + "\n"

	rows, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if v, _ := rows[0].Field("key"); v != "1" {
		t.Errorf("expected BOM-stripped key column, got %q", v)
	}

	m, err := Extract(rows, DefaultOptions())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff([][]int{{1, 1}, {2, 0}}, m.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty csv")
	}
}
