package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessage is returned for messages that can never be processed.
var ErrInvalidMessage = errors.New("invalid message")

// AnalysisRequest asks a worker to analyze one statement.
// Exactly one of Path or SheetRange names the input.
type AnalysisRequest struct {
	ID          string    `json:"id"`
	Path        string    `json:"path,omitempty"`
	SheetRange  string    `json:"sheet_range,omitempty"`
	Formats     []string  `json:"formats,omitempty"`
	OutputDir   string    `json:"output_dir,omitempty"`
	SQLitePath  string    `json:"sqlite_path,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewAnalysisRequest creates a request for the CSV file at path.
func NewAnalysisRequest(path string, formats ...string) *AnalysisRequest {
	return &AnalysisRequest{
		ID:          uuid.NewString(),
		Path:        path,
		Formats:     formats,
		RequestedAt: time.Now(),
	}
}

// Validate checks that the request names exactly one input.
func (m *AnalysisRequest) Validate() error {
	if m.ID == "" {
		return errors.Join(ErrInvalidMessage, errors.New("missing id"))
	}
	if (m.Path == "") == (m.SheetRange == "") {
		return errors.Join(ErrInvalidMessage, errors.New("exactly one of path or sheet_range is required"))
	}
	return nil
}

func (m *AnalysisRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisRequestFromJSON decodes and validates a request.
func AnalysisRequestFromJSON(data []byte) (*AnalysisRequest, error) {
	var msg AnalysisRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AnalysisCompleted reports the outcome of a request. Error is set when the
// run failed; the remaining fields are then zero.
type AnalysisCompleted struct {
	RequestID    string    `json:"request_id"`
	RunID        string    `json:"run_id,omitempty"`
	SourceName   string    `json:"source_name,omitempty"`
	RowsRead     int       `json:"rows_read"`
	RowsDropped  int       `json:"rows_dropped"`
	Transactions int       `json:"transactions"`
	Trend        string    `json:"trend,omitempty"`
	Outputs      []string  `json:"outputs,omitempty"`
	Error        string    `json:"error,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Failed reports whether the run ended in an error.
func (m *AnalysisCompleted) Failed() bool {
	return m.Error != ""
}

func (m *AnalysisCompleted) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnalysisCompletedFromJSON(data []byte) (*AnalysisCompleted, error) {
	var msg AnalysisCompleted
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	return &msg, nil
}
