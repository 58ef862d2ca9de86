package model

// UploadResponse is returned by the asynchronous upload mode.
type UploadResponse struct {
	UserID  string `json:"user_id"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// UploadSyncResponse is returned when the upload is processed inline.
type UploadSyncResponse struct {
	UserID  string   `json:"user_id"`
	Columns []string `json:"columns"`
}

// JobStatusResponse is the poller-facing view of a job.
type JobStatusResponse struct {
	JobID   string    `json:"job_id"`
	State   JobStatus `json:"state"`
	Columns []string  `json:"columns,omitempty"`
	Error   *string   `json:"error,omitempty"`
}

// ComputeRequest asks for one operation over one column of the caller's
// current dataset.
type ComputeRequest struct {
	UserID    string `json:"user_id" validate:"required,max=255"`
	Column    string `json:"column" validate:"required,max=255"`
	Operation string `json:"operation" validate:"required,max=100"`
}

// ComputeResponse is the boundary view of a ComputationRecord.
type ComputeResponse struct {
	GeneratedQuery *string       `json:"generated_query"`
	Result         *float64      `json:"result"`
	Status         ComputeStatus `json:"status"`
}

// HistoryResponse lists past computation records, newest first.
type HistoryResponse struct {
	UserID  string              `json:"user_id"`
	Records []ComputationRecord `json:"records"`
}

// WSMessageType identifies websocket message kinds.
type WSMessageType string

const (
	WSMessageTypeState WSMessageType = "state"
)

// WSStateMessage is pushed to job subscribers on every state change.
type WSStateMessage struct {
	Type    WSMessageType `json:"type"`
	JobID   string        `json:"jobId"`
	State   JobStatus     `json:"state"`
	Columns []string      `json:"columns,omitempty"`
	Error   *string       `json:"error,omitempty"`
}
