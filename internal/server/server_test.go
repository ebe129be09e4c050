package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/kappacheck/internal/database"
	"github.com/TobiSchelling/kappacheck/internal/kappa"
	"github.com/TobiSchelling/kappacheck/internal/matrix"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func storeRun(t *testing.T, db *database.DB, source string, kind kappa.Kind) string {
	t.Helper()
	m := &matrix.Matrix{
		Categories: []string{"Included", "Excluded"},
		Rows:       [][]int{{2, 1}, {3, 0}, {0, 3}, {1, 2}},
	}
	rep, err := kappa.Estimate(kind, m, kappa.Options{})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	id, err := db.InsertRun(database.NewRun(source, "substring", m.Categories, rep))
	if err != nil {
		t.Fatalf("insert run: %v", err)
	}
	return id
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRouteEmpty(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No runs stored yet") {
		t.Error("expected empty-state message in response body")
	}
}

func TestIndexListsRuns(t *testing.T) {
	db := openTestDB(t)
	id := storeRun(t, db, "/data/screening.csv", kappa.Free)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/runs/"+id) {
		t.Error("expected link to stored run")
	}
	if !strings.Contains(body, "screening.csv") {
		t.Error("expected source name in listing")
	}
	if !strings.Contains(body, "Free-marginal") {
		t.Error("expected kappa label in listing")
	}
}

func TestUnknownPathNotFound(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRunRoute(t *testing.T) {
	db := openTestDB(t)
	id := storeRun(t, db, "/data/screening.csv", kappa.Fixed)
	other := storeRun(t, db, "/data/screening.csv", kappa.Free)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/runs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Percent overall agreement = 66.67%",
		"Fixed-marginal kappa = 0.33",
		"<table>",
		"Categories: Included, Excluded",
		"/runs/" + other,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in run page", want)
		}
	}
}

func TestRunRouteMissing(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := get(t, srv, "/runs/does-not-exist")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Run not found") {
		t.Error("expected not-found message")
	}
}

func TestRunRouteEmptyRedirects(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	rec := get(t, srv, "/runs/")
	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
}

func TestDeleteRun(t *testing.T) {
	db := openTestDB(t)
	id := storeRun(t, db, "a.csv", kappa.Free)
	srv := newTestServer(t, db)

	// GET does not delete.
	if rec := get(t, srv, "/runs/"+id+"/delete"); rec.Code != http.StatusFound {
		t.Errorf("expected redirect for GET, got %d", rec.Code)
	}
	if run, _ := db.GetRun(id); run == nil {
		t.Fatal("expected run to survive GET")
	}

	req := httptest.NewRequest("POST", "/runs/"+id+"/delete", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
	if run, _ := db.GetRun(id); run != nil {
		t.Error("expected run to be deleted")
	}
}

func TestRunJSON(t *testing.T) {
	db := openTestDB(t)
	id := storeRun(t, db, "a.csv", kappa.Free)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/api/runs/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		RunID  string       `json:"run_id"`
		Report kappa.Report `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RunID != id || payload.Report.Kind != kappa.Free || payload.Report.Items != 4 {
		t.Errorf("unexpected payload %+v", payload)
	}

	if rec := get(t, srv, "/api/runs/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	rec := get(t, srv, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
