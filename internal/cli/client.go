package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmaddaus/sprintboard/internal/model"
)

// Client is an HTTP client wrapper for communicating with the daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new Client targeting the given daemon host.
func NewClient(host string) *Client {
	return &Client{
		baseURL: strings.TrimRight(host, "/"),
		http: &http.Client{
			// A refresh waits for the whole run.
			Timeout: 5 * time.Minute,
		},
	}
}

// Do executes an HTTP request to the daemon and returns the response.
// If body is non-nil it is JSON-encoded.
func (c *Client) Do(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return nil, fmt.Errorf("daemon not running at %s; start with: sprintboard serve", c.baseURL)
		}
		return nil, fmt.Errorf("request failed (is the daemon running?): %w", err)
	}
	return resp, nil
}

// decodeOrError reads the response body. If the status is not in the 2xx range
// it tries to parse an error message from the JSON body.
func decodeOrError(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("daemon error (%d): %s", resp.StatusCode, string(data))
	}

	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Health returns the daemon health document.
func (c *Client) Health() (map[string]interface{}, error) {
	resp, err := c.Do(http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	var health map[string]interface{}
	if err := decodeOrError(resp, &health); err != nil {
		return nil, err
	}
	return health, nil
}

// Refresh asks the daemon to run a refresh and waits for its report. When
// the run fails the report, if the daemon sent one, is returned with the error.
func (c *Client) Refresh() (*model.RunReport, error) {
	resp, err := c.Do(http.MethodPost, "/refresh", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusBadGateway {
		defer resp.Body.Close()
		var failed struct {
			Error  string           `json:"error"`
			Report *model.RunReport `json:"report"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failed); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return failed.Report, fmt.Errorf("refresh failed: %s", failed.Error)
	}
	var report model.RunReport
	if err := decodeOrError(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Settings returns the daemon's settings with the token redacted.
func (c *Client) Settings() (*model.Settings, error) {
	resp, err := c.Do(http.MethodGet, "/settings", nil)
	if err != nil {
		return nil, err
	}
	var s model.Settings
	if err := decodeOrError(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSetting writes one settings field through the daemon.
func (c *Client) SetSetting(field, value string) (*model.Settings, error) {
	resp, err := c.Do(http.MethodPut, "/settings/"+url.PathEscape(field), map[string]string{"value": value})
	if err != nil {
		return nil, err
	}
	var s model.Settings
	if err := decodeOrError(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Runs lists recent runs, newest first.
func (c *Client) Runs(limit int) ([]*model.RunReport, error) {
	resp, err := c.Do(http.MethodGet, "/runs?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, err
	}
	var runs []*model.RunReport
	if err := decodeOrError(resp, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Run returns a single run by ID.
func (c *Client) Run(id string) (*model.RunReport, error) {
	resp, err := c.Do(http.MethodGet, "/runs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var run model.RunReport
	if err := decodeOrError(resp, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
