package azdo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmaddaus/sprintboard/internal/model"
)

const (
	apiVersion = "6.0"
	userAgent  = "sprintboard/1.0"

	fieldTitle         = "System.Title"
	fieldWorkItemType  = "System.WorkItemType"
	fieldState         = "System.State"
	fieldIterationPath = "System.IterationPath"
)

// ErrNoCurrentIteration is returned when the team has no iteration in the
// "current" timeframe.
var ErrNoCurrentIteration = errors.New("no current iteration")

// ErrForeignHost is returned when a work item URL points at a host other
// than the configured instance. Credentials are never sent there.
var ErrForeignHost = errors.New("work item url is not on the configured host")

// StatusError is returned when the service answers with a non-200 status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Client defines the read operations the sync needs from Azure DevOps.
type Client interface {
	CurrentIteration(ctx context.Context, team string) (*model.Iteration, error)
	QueryAssignedItems(ctx context.Context, team, username string) ([]model.ItemRef, error)
	GetWorkItem(ctx context.Context, ref model.ItemRef) (*model.WorkItem, error)
	EditURL(id int) string
}

// ItemResult is the outcome of fetching one work item.
type ItemResult struct {
	Ref  model.ItemRef
	Item *model.WorkItem
	Err  error
}

// FetchWorkItems fetches every ref concurrently, one goroutine per ref, and
// waits for all of them. A failed fetch is reported in its result and does
// not affect the others. Results are in ref order.
func FetchWorkItems(ctx context.Context, c Client, refs []model.ItemRef) []ItemResult {
	results := make([]ItemResult, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref model.ItemRef) {
			defer wg.Done()
			item, err := c.GetWorkItem(ctx, ref)
			results[i] = ItemResult{Ref: ref, Item: item, Err: err}
		}(i, ref)
	}
	wg.Wait()
	return results
}

// clientImpl is the concrete implementation of Client.
type clientImpl struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the project described by settings.
func NewClient(settings *model.Settings) Client {
	return &clientImpl{
		token:      settings.AccessToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    BaseURL(settings),
	}
}

// NewClientWithHTTP creates a client with a custom http.Client (useful for testing).
func NewClientWithHTTP(settings *model.Settings, httpClient *http.Client) Client {
	return &clientImpl{
		token:      settings.AccessToken,
		httpClient: httpClient,
		baseURL:    BaseURL(settings),
	}
}

// newClientWithBaseURL is an internal constructor for testing with httptest servers.
func newClientWithBaseURL(token string, httpClient *http.Client, baseURL string) *clientImpl {
	return &clientImpl{
		token:      token,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// BaseURL returns https://{instance}/{collection}/{project}. An instance that
// already carries a scheme is used as is.
func BaseURL(settings *model.Settings) string {
	host := strings.TrimRight(settings.Instance, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + "/" + url.PathEscape(settings.Collection) + "/" + url.PathEscape(settings.Project)
}

// basicAuth builds the Authorization header value: an empty user name and
// the personal access token as password.
func basicAuth(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+token))
}

func (c *clientImpl) newRequest(ctx context.Context, method, rawURL string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", basicAuth(c.token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

// doJSON sends req and decodes a 200 response into v.
func (c *clientImpl) doJSON(req *http.Request, op string, v interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *clientImpl) teamURL(team, path string) string {
	return fmt.Sprintf("%s/%s/_apis/%s", c.baseURL, url.PathEscape(team), path)
}

// CurrentIteration returns the first iteration in the team's "current" timeframe.
func (c *clientImpl) CurrentIteration(ctx context.Context, team string) (*model.Iteration, error) {
	u := c.teamURL(team, "work/teamsettings/iterations") + "?$timeframe=current&api-version=" + apiVersion

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Count int               `json:"count"`
		Value []model.Iteration `json:"value"`
	}
	if err := c.doJSON(req, "current iteration", &out); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, ErrNoCurrentIteration
	}
	return &out.Value[0], nil
}

// wiqlAssignedTo is the query for every work item assigned to a user.
const wiqlAssignedTo = `Select [System.Id], [System.Title], [System.State] From WorkItems Where [Assigned to] = "%s"`

// escapeWIQL doubles the string delimiter, the only escape WIQL knows.
func escapeWIQL(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// QueryAssignedItems runs a WIQL query for the items assigned to username.
func (c *clientImpl) QueryAssignedItems(ctx context.Context, team, username string) ([]model.ItemRef, error) {
	u := c.teamURL(team, "wit/wiql") + "?api-version=" + apiVersion

	payload := map[string]string{
		"query": fmt.Sprintf(wiqlAssignedTo, escapeWIQL(username)),
	}

	req, err := c.newRequest(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		QueryType string          `json:"queryType"`
		WorkItems []model.ItemRef `json:"workItems"`
	}
	if err := c.doJSON(req, "query assigned items", &out); err != nil {
		return nil, err
	}
	if out.WorkItems == nil {
		return []model.ItemRef{}, nil
	}
	return out.WorkItems, nil
}

// workItemResponse mirrors GET _apis/wit/workitems/{id}.
type workItemResponse struct {
	ID     int                    `json:"id"`
	Fields map[string]interface{} `json:"fields"`
	URL    string                 `json:"url"`
	Links  struct {
		HTML struct {
			Href string `json:"href"`
		} `json:"html"`
	} `json:"_links"`
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// checkHost rejects rawURL unless its scheme and host equal the base URL's.
func (c *clientImpl) checkHost(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return fmt.Errorf("%w: %s", ErrForeignHost, u.Host)
	}
	return nil
}

// GetWorkItem fetches the item at ref.URL, which must be on the
// configured host.
func (c *clientImpl) GetWorkItem(ctx context.Context, ref model.ItemRef) (*model.WorkItem, error) {
	if ref.URL == "" {
		return nil, fmt.Errorf("get work item %d: empty url", ref.ID)
	}

	if err := c.checkHost(ref.URL); err != nil {
		return nil, fmt.Errorf("get work item %d: %w", ref.ID, err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, err
	}

	var out workItemResponse
	if err := c.doJSON(req, fmt.Sprintf("get work item %d", ref.ID), &out); err != nil {
		return nil, err
	}

	id := out.ID
	if id == 0 {
		id = ref.ID
	}
	item := &model.WorkItem{
		ID:            id,
		Title:         stringField(out.Fields, fieldTitle),
		Type:          stringField(out.Fields, fieldWorkItemType),
		State:         stringField(out.Fields, fieldState),
		IterationPath: stringField(out.Fields, fieldIterationPath),
		URL:           out.URL,
		EditURL:       out.Links.HTML.Href,
	}
	if item.URL == "" {
		item.URL = ref.URL
	}
	if item.EditURL == "" {
		item.EditURL = c.EditURL(id)
	}
	return item, nil
}

// EditURL returns the browser link to the work item's edit page.
func (c *clientImpl) EditURL(id int) string {
	return fmt.Sprintf("%s/_workitems/edit/%d", c.baseURL, id)
}
