package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Timestamp decodes the backend's date-time values. Strings may carry a zone
// (RFC 3339) or be zone-less local date-times. Epoch numbers (seconds or
// milliseconds) and date-part arrays ([y, m, d, h, min, s, ns]) are accepted
// too. Anything else decodes to the zero time so one odd field cannot fail a
// whole session list.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		t.Time = parseTimestamp(s)
	case '[':
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 3 {
			return nil
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil || n <= 0 {
			return nil
		}
		if n >= epochMillisThreshold {
			t.Time = time.UnixMilli(int64(n))
		} else {
			sec := int64(n)
			t.Time = time.Unix(sec, int64((n-float64(sec))*1e9))
		}
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// ServiceStatus is the health of one of the services the migration targets.
type ServiceStatus struct {
	Running    bool   `json:"running"`
	Configured bool   `json:"configured,omitempty"`
	Exists     bool   `json:"exists,omitempty"`
	PortOpen   bool   `json:"portOpen,omitempty"`
	Responding bool   `json:"responding,omitempty"`
	Path       string `json:"path,omitempty"`
	URL        string `json:"url,omitempty"`
}

// SystemStatus is the backend's self-description from GET /api/status.
type SystemStatus struct {
	Service SystemService `json:"uber-snabel"`
	Config  SystemConfig  `json:"config"`
}

// SystemService names the running backend build.
type SystemService struct {
	Version string `json:"version"`
	Status  string `json:"status"`
}

// SystemConfig lists the paths the backend works with.
type SystemConfig struct {
	FrontendPath    string `json:"frontendPath"`
	BackendPath     string `json:"backendPath"`
	TempDirectory   string `json:"tempDirectory"`
	AgentExecutable string `json:"claudeExecutable"`
	ConfigFile      string `json:"configFile"`
}

// Mfe is a micro-frontend a session can target.
type Mfe struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Session is a session snapshot as returned by the backend. Status is kept as
// the raw string so unknown values survive decoding; see package status.
type Session struct {
	SessionID     string    `json:"sessionId"`
	Description   string    `json:"description"`
	Instructions  string    `json:"instructions,omitempty"`
	TargetMfe     string    `json:"targetMfe,omitempty"`
	Status        string    `json:"status"`
	BranchName    string    `json:"branchName,omitempty"`
	CreatedAt     Timestamp `json:"createdAt"`
	CompletedAt   Timestamp `json:"completedAt"`
	Merged        bool      `json:"merged"`
	IsRunning     bool      `json:"isRunning"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	FilesCreated  int       `json:"filesCreated,omitempty"`
	FilesModified int       `json:"filesModified,omitempty"`
	FilesDeleted  int       `json:"filesDeleted,omitempty"`
}

// CreateSessionRequest is the body of a session creation request.
type CreateSessionRequest struct {
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	TargetMfe    string `json:"targetMfe"`
}

// CreateSessionResponse is the backend's answer to a session creation.
type CreateSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	TargetMfe string    `json:"targetMfe"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Analysis summarizes an uploaded archive.
type Analysis struct {
	TotalFiles      int     `json:"totalFiles"`
	TypescriptFiles int     `json:"typescriptFiles"`
	JavascriptFiles int     `json:"javascriptFiles"`
	TotalSizeMB     float64 `json:"totalSizeMB"`
}

// UploadResponse is the backend's answer to an archive upload.
type UploadResponse struct {
	SessionID    string   `json:"sessionId"`
	Status       string   `json:"status"`
	UnpackedPath string   `json:"unpackedPath"`
	Analysis     Analysis `json:"analysis"`
}

// StartRequest carries the optional start options.
type StartRequest struct {
	AdditionalInstructions string `json:"additionalInstructions,omitempty"`
}

// StartResponse is the backend's answer to a start request.
type StartResponse struct {
	SessionID  string `json:"sessionId"`
	Status     string `json:"status"`
	BranchName string `json:"branchName"`
}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// CommandRequest is the body of a command sent to the agent.
type CommandRequest struct {
	Command string `json:"command"`
}

// MergeRequest carries the optional merge commit message.
type MergeRequest struct {
	CommitMessage string `json:"commitMessage,omitempty"`
}

// MergeResponse acknowledges a merge.
type MergeResponse struct {
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	MergedAt  Timestamp `json:"mergedAt"`
}

// ValidationResult is the outcome of the backend validation checks.
type ValidationResult struct {
	Passed           bool   `json:"passed"`
	TypeScript       bool   `json:"typescript"`
	APICompatibility bool   `json:"apiCompatibility"`
	Tests            bool   `json:"tests"`
	Build            bool   `json:"build"`
	Error            string `json:"error,omitempty"`
}

// ChangesResponse lists files changed on a session branch.
type ChangesResponse struct {
	Changes []string `json:"changes"`
}

// ResetResponse is the backend's answer to a frontend reset.
type ResetResponse struct {
	Message string `json:"message"`
	Output  string `json:"output,omitempty"`
}

// MessageResponse is a generic `{message}` acknowledgment.
type MessageResponse struct {
	Message string `json:"message"`
}
