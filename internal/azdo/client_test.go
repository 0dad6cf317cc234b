package azdo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmaddaus/sprintboard/internal/model"
)

func newTestServer(handler http.HandlerFunc) (*httptest.Server, *clientImpl) {
	ts := httptest.NewServer(handler)
	c := newClientWithBaseURL("test-token", ts.Client(), ts.URL+"/Coll/Proj")
	return ts, c
}

func checkHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte(":test-token"))
	if got := r.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization: want %q, got %q", want, got)
	}
	if got := r.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type: want application/json, got %q", got)
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		instance string
		want     string
	}{
		{"dev.example.com", "https://dev.example.com/DefaultCollection/My%20Proj"},
		{"dev.example.com/", "https://dev.example.com/DefaultCollection/My%20Proj"},
		{"http://tfs.local:8080/tfs", "http://tfs.local:8080/tfs/DefaultCollection/My%20Proj"},
	}
	for _, tt := range tests {
		s := &model.Settings{Instance: tt.instance, Collection: "DefaultCollection", Project: "My Proj"}
		if got := BaseURL(s); got != tt.want {
			t.Errorf("BaseURL(%q): want %q, got %q", tt.instance, tt.want, got)
		}
	}
}

func TestCurrentIteration(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)
		if r.Method != http.MethodGet {
			t.Errorf("method: want GET, got %s", r.Method)
		}
		if r.URL.Path != "/Coll/Proj/Blue Team/_apis/work/teamsettings/iterations" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("$timeframe"); got != "current" {
			t.Errorf("$timeframe: want current, got %q", got)
		}
		if got := r.URL.Query().Get("api-version"); got != "6.0" {
			t.Errorf("api-version: want 6.0, got %q", got)
		}
		fmt.Fprint(w, `{"count":2,"value":[
			{"id":"a","name":"Sprint 5","path":"Proj\\Sprint 5","attributes":{"timeFrame":"current"}},
			{"id":"b","name":"Sprint 6","path":"Proj\\Sprint 6"}]}`)
	})
	defer ts.Close()

	it, err := client.CurrentIteration(context.Background(), "Blue Team")
	if err != nil {
		t.Fatalf("CurrentIteration: %v", err)
	}
	if it.Name != "Sprint 5" {
		t.Errorf("Name: want Sprint 5, got %q", it.Name)
	}
	if it.Path != `Proj\Sprint 5` {
		t.Errorf("Path: want Proj\\Sprint 5, got %q", it.Path)
	}
	if it.Attributes.TimeFrame != "current" {
		t.Errorf("TimeFrame: want current, got %q", it.Attributes.TimeFrame)
	}
}

func TestCurrentIterationEmpty(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":0,"value":[]}`)
	})
	defer ts.Close()

	_, err := client.CurrentIteration(context.Background(), "team")
	if !errors.Is(err, ErrNoCurrentIteration) {
		t.Fatalf("expected ErrNoCurrentIteration, got %v", err)
	}
}

func TestCurrentIterationServerError(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	})
	defer ts.Close()

	_, err := client.CurrentIteration(context.Background(), "team")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Status != http.StatusInternalServerError {
		t.Errorf("Status: want 500, got %d", se.Status)
	}
	if se.Body != "boom" {
		t.Errorf("Body: want boom, got %q", se.Body)
	}
}

func TestQueryAssignedItems(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)
		if r.Method != http.MethodPost {
			t.Errorf("method: want POST, got %s", r.Method)
		}
		if r.URL.Path != "/Coll/Proj/team/_apis/wit/wiql" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		want := `Select [System.Id], [System.Title], [System.State] From WorkItems Where [Assigned to] = "Ada Lovelace"`
		if body["query"] != want {
			t.Errorf("query:\nwant %s\ngot  %s", want, body["query"])
		}
		fmt.Fprint(w, `{"queryType":"flat","workItems":[{"id":1,"url":"http://x/1"},{"id":2,"url":"http://x/2"}]}`)
	})
	defer ts.Close()

	refs, err := client.QueryAssignedItems(context.Background(), "team", "Ada Lovelace")
	if err != nil {
		t.Fatalf("QueryAssignedItems: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[1].ID != 2 || refs[1].URL != "http://x/2" {
		t.Errorf("unexpected ref: %+v", refs[1])
	}
}

func TestQueryAssignedItemsEscapesQuotes(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if !strings.HasSuffix(body["query"], `= "a""b"`) {
			t.Errorf("expected doubled quote, got %s", body["query"])
		}
		fmt.Fprint(w, `{"workItems":null}`)
	})
	defer ts.Close()

	refs, err := client.QueryAssignedItems(context.Background(), "team", `a"b`)
	if err != nil {
		t.Fatalf("QueryAssignedItems: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", refs)
	}
}

func TestGetWorkItem(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		checkHeaders(t, r)
		if r.URL.Path != "/Coll/Proj/_apis/wit/workItems/7" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":7,"url":"http://x/7","fields":{
			"System.Title":"Fix crash",
			"System.WorkItemType":"User Story",
			"System.State":"In Progress",
			"System.IterationPath":"Proj\\Sprint 5"}}`)
	})
	defer ts.Close()

	item, err := client.GetWorkItem(context.Background(), model.ItemRef{ID: 7, URL: ts.URL + "/Coll/Proj/_apis/wit/workItems/7"})
	if err != nil {
		t.Fatalf("GetWorkItem: %v", err)
	}
	if item.ID != 7 || item.Title != "Fix crash" || item.Type != "User Story" || item.State != "In Progress" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.IterationPath != `Proj\Sprint 5` {
		t.Errorf("IterationPath: got %q", item.IterationPath)
	}
	if want := ts.URL + "/Coll/Proj/_workitems/edit/7"; item.EditURL != want {
		t.Errorf("EditURL: want %q, got %q", want, item.EditURL)
	}
}

func TestGetWorkItemPrefersHTMLLink(t *testing.T) {
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":3,"fields":{},"_links":{"html":{"href":"https://web/edit/3"}}}`)
	})
	defer ts.Close()

	item, err := client.GetWorkItem(context.Background(), model.ItemRef{ID: 3, URL: ts.URL + "/3"})
	if err != nil {
		t.Fatalf("GetWorkItem: %v", err)
	}
	if item.EditURL != "https://web/edit/3" {
		t.Errorf("EditURL: got %q", item.EditURL)
	}
	if item.URL != ts.URL+"/3" {
		t.Errorf("URL: expected ref url fallback, got %q", item.URL)
	}
}

func TestGetWorkItemRejectsForeignHost(t *testing.T) {
	var foreignCalls int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&foreignCalls, 1)
	}))
	defer foreign.Close()

	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})
	defer ts.Close()

	for _, raw := range []string{foreign.URL + "/Coll/Proj/_apis/wit/workItems/7", "://bad"} {
		_, err := client.GetWorkItem(context.Background(), model.ItemRef{ID: 7, URL: raw})
		if err == nil {
			t.Errorf("GetWorkItem(%q): expected error", raw)
		}
	}
	_, err := client.GetWorkItem(context.Background(), model.ItemRef{ID: 7, URL: foreign.URL + "/7"})
	if !errors.Is(err, ErrForeignHost) {
		t.Errorf("expected ErrForeignHost, got %v", err)
	}
	if n := atomic.LoadInt32(&foreignCalls); n != 0 {
		t.Errorf("foreign host received %d requests", n)
	}
}

func TestFetchWorkItemsPartialFailure(t *testing.T) {
	var calls int32
	ts, client := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if strings.HasSuffix(r.URL.Path, "/2") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/items/")
		fmt.Fprintf(w, `{"id":%s,"fields":{"System.Title":"item %s"}}`, id, id)
	})
	defer ts.Close()

	refs := []model.ItemRef{
		{ID: 1, URL: ts.URL + "/items/1"},
		{ID: 2, URL: ts.URL + "/items/2"},
		{ID: 3, URL: ts.URL + "/items/3"},
	}
	results := FetchWorkItems(context.Background(), client, refs)

	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err != nil || results[0].Item.Title != "item 1" {
		t.Errorf("result 0: %+v", results[0])
	}
	var se *StatusError
	if !errors.As(results[1].Err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("result 1: expected 404 StatusError, got %v", results[1].Err)
	}
	if results[2].Err != nil || results[2].Ref.ID != 3 {
		t.Errorf("result 2: %+v", results[2])
	}
}
