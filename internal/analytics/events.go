// Package analytics tracks search and rebuild activity. Services emit events
// to a Kafka topic through a buffered Collector; an Aggregator consumes the
// topic and serves rolled-up statistics (latency percentiles, top queries,
// zero-result rate) over HTTP. The zero-result rate matters downstream: the
// prompt-construction collaborator uses retrieval quality to decide whether
// to answer or fall back.
package analytics

import "time"

type EventType string

const (
	EventSearch  EventType = "search"
	EventRebuild EventType = "rebuild"
)

// SearchEvent describes one executed query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	K         int       `json:"k"`
	MinScore  float64   `json:"min_score"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// RebuildEvent describes one completed index rebuild.
type RebuildEvent struct {
	Type      EventType `json:"type"`
	DocCount  int       `json:"doc_count"`
	TermCount int       `json:"term_count"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
