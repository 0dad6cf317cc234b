package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmaddaus/sprintboard/internal/model"
)

func TestConfigSetGetList(t *testing.T) {
	dataDir := tempDataDir(t)

	if _, err := execute(t, "--data-dir", dataDir, "config", "set", "project", "Proj"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := execute(t, "--data-dir", dataDir, "config", "set", "access_token", "s3cret"); err != nil {
		t.Fatalf("config set token: %v", err)
	}

	out, err := execute(t, "--data-dir", dataDir, "config", "get", "project")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "Proj" {
		t.Errorf("get project = %q", out)
	}

	out, err = execute(t, "--data-dir", dataDir, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	var s model.Settings
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode list output %q: %v", out, err)
	}
	if s.Project != "Proj" || s.Collection != model.DefaultCollection {
		t.Errorf("unexpected settings %+v", s)
	}
	if s.AccessToken == "s3cret" {
		t.Error("list must redact the token by default")
	}

	out, _ = execute(t, "--data-dir", dataDir, "config", "list", "--reveal", "--pretty")
	if !strings.Contains(out, "s3cret") || !strings.Contains(out, "project") {
		t.Errorf("pretty reveal output: %q", out)
	}
}

func TestConfigUnknownField(t *testing.T) {
	dataDir := tempDataDir(t)
	for _, args := range [][]string{
		{"config", "get", "colour"},
		{"config", "set", "colour", "blue"},
	} {
		_, err := execute(t, append([]string{"--data-dir", dataDir}, args...)...)
		if err == nil || !strings.Contains(err.Error(), "unknown setting") {
			t.Errorf("%v: expected unknown setting error, got %v", args, err)
		}
	}
}

func TestConfigSetThroughDaemon(t *testing.T) {
	var gotPath, gotValue string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotValue = body["value"]
		json.NewEncoder(w).Encode(model.Settings{Team: body["value"]})
	}))
	t.Cleanup(ts.Close)

	if _, err := execute(t, "--host", ts.URL, "config", "set", "team", "Team A"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if gotPath != "/settings/team" || gotValue != "Team A" {
		t.Errorf("daemon got %s %q", gotPath, gotValue)
	}
}
