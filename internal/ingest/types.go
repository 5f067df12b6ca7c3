// Package ingest defines the request/response types and Kafka event schemas
// used by the passage ingestion pipeline.
package ingest

import "time"

// PassageInput is one extracted text fragment in an ingestion request. Text
// extraction (PDF, DOCX, OCR) happens upstream; this service only accepts
// plain text.
type PassageInput struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ReplaceSourceRequest is the JSON body accepted by the source upload
// endpoint. It carries the complete passage list for one source; partial
// updates are not supported.
type ReplaceSourceRequest struct {
	SourceID string         `json:"source_id"`
	Passages []PassageInput `json:"passages"`
}

// ReplaceSourceResponse is returned after a source is persisted.
type ReplaceSourceResponse struct {
	SourceID     string `json:"source_id"`
	PassageCount int    `json:"passage_count"`
	Status       string `json:"status"`
}

// Corpus change actions.
const (
	ActionReplace = "replace"
	ActionDelete  = "delete"
)

// CorpusChangedEvent is published to Kafka after any corpus mutation. The
// rebuild worker reacts by rebuilding the whole index from the stored
// passage list; the event intentionally carries no passage data.
type CorpusChangedEvent struct {
	SourceID  string    `json:"source_id"`
	Action    string    `json:"action"`
	ChangedAt time.Time `json:"changed_at"`
}

// IndexCompleteEvent is published after a rebuild finished and its snapshot
// is durable. Searchers reload their model when they see one.
type IndexCompleteEvent struct {
	Snapshot   string    `json:"snapshot"`
	DocCount   int       `json:"doc_count"`
	BuiltAt    time.Time `json:"built_at"`
	BuildMicro int64     `json:"build_us"`
}
