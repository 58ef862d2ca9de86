package model

import "time"

// ComputeStatus describes how (or whether) a compute request produced its
// numeric result.
type ComputeStatus string

const (
	// ComputeStatusExecuted means a generated query passed validation and
	// ran on the execution engine.
	ComputeStatusExecuted ComputeStatus = "executed"
	// ComputeStatusFallback means the built-in computation produced the
	// value, either because generation failed or because the candidate
	// query was rejected (in which case the rejected text is still shown).
	ComputeStatusFallback ComputeStatus = "fallback"
	// ComputeStatusRejectedShown means the candidate query was rejected
	// and the fallback could not produce a value either; the rejected
	// text is shown and the result is absent.
	ComputeStatusRejectedShown ComputeStatus = "rejected-shown"
	// ComputeStatusError means the validator accepted the query but the
	// engine refused it at run time. The query is shown verbatim and no
	// result is computed.
	ComputeStatusError ComputeStatus = "error"
)

// ResultSource records which path produced the numeric result.
type ResultSource string

const (
	SourceGenerated ResultSource = "generated"
	SourceFallback  ResultSource = "fallback"
	SourceNone      ResultSource = "none"
)

// ComputationRecord is the persisted outcome of one compute request.
// Result is set iff Source != none; when Source is generated, Query holds
// the validated statement that produced the value.
type ComputationRecord struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"ownerId"`
	Column    string        `json:"column"`
	Operation string        `json:"operation"`
	Query     *string       `json:"generated_query"`
	Verdict   string        `json:"verdict"`
	Result    *float64      `json:"result"`
	Source    ResultSource  `json:"source"`
	Status    ComputeStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}
