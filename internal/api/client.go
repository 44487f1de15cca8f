// Package api provides the HTTP client for the migration service.
//
// This package handles all communication with the backend that owns migration
// sessions, including request/response handling, multipart archive upload,
// error extraction, and (in logstream.go) the websocket log stream dialer.
//
// The backend is the source of truth for every type declared here; the client
// never persists anything.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the default backend base URL.
	DefaultBaseURL = "http://localhost:8090"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// UserAgent is sent on every request. cmd/snabel overrides it with the build version.
var UserAgent = "snabel-cli/dev"

// Client is the migration service API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
//
// Parameters:
//   - baseURL: The backend base URL (e.g. "http://localhost:8090")
//   - timeout: The HTTP request timeout; zero uses DefaultTimeout
//
// Returns:
//   - *Client: A new client instance
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the backend base URL used by this client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

// Error returns a human-readable error message.
//
// Returns:
//   - string: The error message, with fallback to HTTP status if no message available
func (e *APIError) Error() string {
	if e.Message != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether the backend answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func sessionPath(sessionID string, suffix string) string {
	return "/api/import/session/" + url.PathEscape(sessionID) + suffix
}

// newRequest builds a request with the common headers set.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// doRequest performs a JSON HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	contentType := ""
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	req, err := c.newRequest(ctx, method, path, bodyReader, contentType)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// parseResponse parses the response body into the target struct.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errorFromBody(resp.StatusCode, resp.Body)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	return nil
}

// parseAck reads the body of an acknowledgment endpoint. Some endpoints answer
// with an empty body (204) or plain text; both count as success. A JSON body is
// decoded into target.
//
// Returns:
//   - string: The trimmed body when it was not JSON, otherwise ""
//   - error: The server error for non-2xx responses, or a read failure
func parseAck(resp *http.Response, target interface{}) (string, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errorFromBody(resp.StatusCode, resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", nil
	}
	if target != nil && json.Unmarshal(body, target) == nil {
		return "", nil
	}
	return truncateBody(string(body)), nil
}

func (c *Client) postAck(ctx context.Context, path string, body, target interface{}) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	return parseAck(resp, target)
}

// truncateBody shortens s to maxBodyLen bytes on a rune boundary.
func truncateBody(s string) string {
	if len(s) <= maxBodyLen {
		return s
	}
	cut := maxBodyLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// maxBodyLen bounds how much of a raw response body ends up in an error.
const maxBodyLen = 200

// errorFromBody extracts the server-supplied message from an error response.
// Supports the "error", "message" and "detail" field names, falling back to
// the raw body.
func errorFromBody(statusCode int, r io.Reader) error {
	body, _ := io.ReadAll(r)

	var errResp struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &errResp)

	message := errResp.Error
	if message == "" {
		message = errResp.Message
	}
	detail := errResp.Detail

	if message == "" && detail == "" {
		detail = truncateBody(strings.TrimSpace(string(body)))
	}

	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Detail:     detail,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return parseResponse(resp, target)
}

func (c *Client) postJSON(ctx context.Context, path string, body, target interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return parseResponse(resp, target)
}

// GetFrontendStatus fetches the health of the frontend service.
func (c *Client) GetFrontendStatus(ctx context.Context) (*ServiceStatus, error) {
	var result ServiceStatus
	if err := c.getJSON(ctx, "/api/status/frontend", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBackendStatus fetches the health of the backend service.
func (c *Client) GetBackendStatus(ctx context.Context) (*ServiceStatus, error) {
	var result ServiceStatus
	if err := c.getJSON(ctx, "/api/status/backend", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSystemStatus fetches the backend version and its configured paths.
func (c *Client) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	var result SystemStatus
	if err := c.getJSON(ctx, "/api/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConfig fetches the backend configuration as key/value pairs.
func (c *Client) GetConfig(ctx context.Context) (map[string]string, error) {
	result := map[string]string{}
	if err := c.getJSON(ctx, "/api/status/config", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateConfig updates backend configuration keys.
//
// Parameters:
//   - ctx: Context for cancellation
//   - updates: Keys to change (e.g. "frontend.path", "branch.prefix")
//
// Returns:
//   - string: The backend confirmation message
//   - error: Any error that occurred
func (c *Client) UpdateConfig(ctx context.Context, updates map[string]string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, "/api/status/config", updates)
	if err != nil {
		return "", err
	}
	var result MessageResponse
	if err := parseResponse(resp, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}

// ListMfes fetches the micro-frontends a session can target.
func (c *Client) ListMfes(ctx context.Context) ([]Mfe, error) {
	var result []Mfe
	if err := c.getJSON(ctx, "/api/import/mfes", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions fetches the session collection, newest first.
//
// Parameters:
//   - ctx: Context for cancellation
//   - limit: Maximum number of sessions; zero uses the backend default
//
// Returns:
//   - []Session: The session snapshots in backend order
//   - error: Any error that occurred
func (c *Client) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	path := "/api/import/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result []Session
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetSession fetches a single session snapshot.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var result Session
	if err := c.getJSON(ctx, sessionPath(sessionID, ""), &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return &result, nil
}

// CreateSession creates a new migration session.
//
// Parameters:
//   - ctx: Context for cancellation
//   - req: The session configuration
//
// Returns:
//   - *CreateSessionResponse: The response containing the new session ID
//   - error: Any error that occurred
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	var result CreateSessionResponse
	if err := c.postJSON(ctx, "/api/import/session", req, &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		return nil, fmt.Errorf("backend returned no session id")
	}
	return &result, nil
}

// UploadArchive uploads a code archive for a session and returns the analysis.
//
// Parameters:
//   - ctx: Context for cancellation
//   - sessionID: The session the archive belongs to
//   - filePath: Path to the archive on disk
//
// Returns:
//   - *UploadResponse: The upload response with the file analysis
//   - error: Any error that occurred
func (c *Client) UploadArchive(ctx context.Context, sessionID, filePath string) (*UploadResponse, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, sessionPath(sessionID, "/upload"), body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	var result UploadResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartSession starts the transformation agent for a session.
func (c *Client) StartSession(ctx context.Context, sessionID string, req *StartRequest) (*StartResponse, error) {
	if req == nil {
		req = &StartRequest{}
	}
	var result StartResponse
	if err := c.postJSON(ctx, sessionPath(sessionID, "/start"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopSession stops the agent attached to a session. The backend acknowledges
// even when no process is running.
func (c *Client) StopSession(ctx context.Context, sessionID string) (*StopResponse, error) {
	var result StopResponse
	if _, err := c.postAck(ctx, sessionPath(sessionID, "/stop"), nil, &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return &result, nil
}

// SendCommand forwards a command to the running agent.
func (c *Client) SendCommand(ctx context.Context, sessionID, command string) error {
	return c.postJSON(ctx, sessionPath(sessionID, "/command"), &CommandRequest{Command: command}, nil)
}

// MergeSession merges the session branch.
//
// Parameters:
//   - ctx: Context for cancellation
//   - sessionID: The session to merge
//   - commitMessage: Optional merge commit message; empty lets the backend choose
//
// Returns:
//   - *MergeResponse: The merge acknowledgment
//   - error: Any error that occurred
func (c *Client) MergeSession(ctx context.Context, sessionID, commitMessage string) (*MergeResponse, error) {
	var result MergeResponse
	if _, err := c.postAck(ctx, sessionPath(sessionID, "/merge"), &MergeRequest{CommitMessage: commitMessage}, &result); err != nil {
		return nil, err
	}
	if result.SessionID == "" {
		result.SessionID = sessionID
	}
	return &result, nil
}

// ValidateSession runs the backend validation checks for a session.
func (c *Client) ValidateSession(ctx context.Context, sessionID string) (*ValidationResult, error) {
	var result ValidationResult
	if err := c.postJSON(ctx, sessionPath(sessionID, "/validate"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDiff returns the git diff of the session branch as plain text.
func (c *Client) GetDiff(ctx context.Context, sessionID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, sessionPath(sessionID, "/diff"), nil, "")
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", errorFromBody(resp.StatusCode, resp.Body)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff: %w", err)
	}
	return string(data), nil
}

// GetChanges returns the files changed on the session branch.
func (c *Client) GetChanges(ctx context.Context, sessionID string) ([]string, error) {
	var result ChangesResponse
	if err := c.getJSON(ctx, sessionPath(sessionID, "/changes"), &result); err != nil {
		return nil, err
	}
	return result.Changes, nil
}

// ResetFrontend discards uncommitted changes in the frontend working tree.
func (c *Client) ResetFrontend(ctx context.Context) (*ResetResponse, error) {
	var result ResetResponse
	text, err := c.postAck(ctx, "/api/git/reset-frontend", nil, &result)
	if err != nil {
		return nil, err
	}
	if result.Message == "" {
		result.Message = text
	}
	return &result, nil
}
