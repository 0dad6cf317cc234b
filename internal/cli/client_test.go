package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmaddaus/sprintboard/internal/model"
)

// newTestServer creates an httptest server that routes to the given handler func.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, NewClient(ts.URL)
}

func TestClientRefresh(t *testing.T) {
	var gotMethod, gotPath string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(model.RunReport{
			ID:    "run-1",
			Items: []*model.ItemReport{{WorkItemID: 1, Outcome: model.OutcomeCreated}},
		})
	})

	report, err := c.Refresh()
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/refresh" {
		t.Errorf("request: %s %s", gotMethod, gotPath)
	}
	if report.ID != "run-1" || report.Count(model.OutcomeCreated) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestClientRefreshFailureKeepsReport(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  "get current iteration: unexpected status 500",
			"report": model.RunReport{ID: "run-2", Error: "boom"},
		})
	})

	report, err := c.Refresh()
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected refresh error, got %v", err)
	}
	if report == nil || report.ID != "run-2" {
		t.Errorf("expected report with error, got %+v", report)
	}
}

func TestClientRefreshConflict(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "refresh already in progress"})
	})

	_, err := c.Refresh()
	if err == nil || !strings.Contains(err.Error(), "daemon error (409)") {
		t.Fatalf("expected 409 error, got %v", err)
	}
}

func TestClientRuns(t *testing.T) {
	var gotQuery string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/runs/abc" {
			json.NewEncoder(w).Encode(model.RunReport{ID: "abc"})
			return
		}
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]model.RunReport{{ID: "abc", StartedAt: time.Now()}})
	})

	runs, err := c.Runs(5)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if gotQuery != "limit=5" || len(runs) != 1 {
		t.Errorf("query %q, runs %d", gotQuery, len(runs))
	}

	run, err := c.Run("abc")
	if err != nil || run.ID != "abc" {
		t.Errorf("Run: %+v, %v", run, err)
	}
}

func TestClientErrorWithoutJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("plain failure"))
	})

	_, err := c.Health()
	if err == nil || !strings.Contains(err.Error(), "plain failure") {
		t.Fatalf("expected raw body in error, got %v", err)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url).Health()
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}
