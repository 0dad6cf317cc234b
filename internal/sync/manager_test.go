package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/model"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/vault"
)

func newTestRunStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func staticFactory(c *mockClient, v vault.Vault) Factory {
	return func(ctx context.Context) (*Pipeline, error) {
		return newTestPipeline(c, v, nil), nil
	}
}

func TestManagerRefreshRecordsRun(t *testing.T) {
	c := newMockClient()
	c.add(1, "Bug", "Pending", `Proj\Sprint 5`, "Fix crash")
	rs := newTestRunStore(t)
	m := NewManager(staticFactory(c, vault.NewMemVault()), rs)

	report, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	got, err := rs.GetRun(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Iteration != "Sprint 5" || len(got.Items) != 1 {
		t.Errorf("unexpected recorded run: %+v", got)
	}

	st := m.Status()
	if st.Running || st.LastRunID != report.ID || st.LastRunAt == nil || st.LastError != "" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestManagerFactoryErrorIsRecorded(t *testing.T) {
	rs := newTestRunStore(t)
	m := NewManager(func(ctx context.Context) (*Pipeline, error) {
		return nil, errors.New("settings unreadable")
	}, rs)

	report, err := m.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if report == nil || report.Error != "settings unreadable" {
		t.Fatalf("unexpected report: %+v", report)
	}
	runs, _ := rs.ListRuns(context.Background(), 0)
	if len(runs) != 1 || runs[0].Error == "" {
		t.Errorf("failed run not recorded: %+v", runs)
	}
	if m.Status().LastError != "settings unreadable" {
		t.Errorf("status error: %q", m.Status().LastError)
	}
}

func TestManagerRejectsConcurrentRefresh(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	c := newMockClient()
	m := NewManager(func(ctx context.Context) (*Pipeline, error) {
		close(entered)
		<-release
		return newTestPipeline(c, vault.NewMemVault(), nil), nil
	}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		done <- err
	}()
	<-entered

	if !m.Status().Running {
		t.Error("status should report running")
	}
	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if m.Status().Running {
		t.Error("status should not report running after completion")
	}
}

func TestManagerTriggerRunsLoop(t *testing.T) {
	c := newMockClient()
	c.add(1, "Bug", "Pending", `Proj\Sprint 5`, "Fix crash")
	rs := newTestRunStore(t)
	m := NewManager(staticFactory(c, vault.NewMemVault()), rs)

	m.Start(0)
	defer m.Stop()
	m.Trigger()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status().LastRunID != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if m.Status().LastRunID == "" {
		t.Fatal("triggered refresh did not run")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(staticFactory(newMockClient(), vault.NewMemVault()), nil)
	m.Stop()
}

// fakeDevOps serves the three endpoints a refresh uses.
func fakeDevOps(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/Coll/Proj/TeamA/_apis/work/teamsettings/iterations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"value": []map[string]string{{"id": "it-5", "name": "Sprint 5", "path": `Proj\Sprint 5`}},
		})
	})
	mux.HandleFunc("/Coll/Proj/TeamA/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"workItems": []map[string]interface{}{
				{"id": 1, "url": srv.URL + "/Coll/_apis/wit/workItems/1"},
			},
		})
	})
	mux.HandleFunc("/Coll/_apis/wit/workItems/1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 1,
			"fields": map[string]string{
				"System.Title":         "Fix crash",
				"System.WorkItemType":  "Bug",
				"System.State":         "Pending",
				"System.IterationPath": `Proj\Sprint 5`,
			},
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFactoryEndToEnd(t *testing.T) {
	srv := fakeDevOps(t)
	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	if err := os.MkdirAll(vaultDir, 0755); err != nil {
		t.Fatal(err)
	}

	ss := config.NewSettingsStore(filepath.Join(dir, "settings.json"))
	settings := model.DefaultSettings()
	settings.Instance = srv.URL
	settings.Collection = "Coll"
	settings.Project = "Proj"
	settings.Team = "TeamA"
	settings.Username = "alice"
	settings.AccessToken = "pat"
	settings.TargetFolder = "Work"
	if err := ss.Save(settings); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := NewManager(NewFactory(ss, vaultDir, "", nil), nil)
	report, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if report.Count(model.OutcomeCreated) != 1 {
		t.Fatalf("expected one note created: %+v", report.Items)
	}

	note, err := os.ReadFile(filepath.Join(vaultDir, "Work", "Proj", "Sprint 5", "Bug - 1.md"))
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	wantLink := fmt.Sprintf("Link: %s/Coll/Proj/_workitems/edit/1", srv.URL)
	if !strings.Contains(string(note), wantLink) {
		t.Errorf("note missing %q:\n%s", wantLink, note)
	}
	board, err := os.ReadFile(filepath.Join(vaultDir, "Work", "Proj", "Sprint 5", "Sprint 5-Board.md"))
	if err != nil {
		t.Fatalf("read board: %v", err)
	}
	if !strings.Contains(string(board), "- [ ] [[Bug - 1]] Fix crash") {
		t.Errorf("board missing card:\n%s", board)
	}
}
