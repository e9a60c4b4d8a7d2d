package domain

import "time"

// ExternalReference is a single external resource reference found in a
// document body. It is recomputed on every scan and never persisted.
type ExternalReference struct {
	Kind  string // RefKindImage or RefKindFile
	Tag   string // full matched span, verbatim
	URL   string // extracted source URL
	Start int    // byte offset of the span in the body
	End   int
}

// Substitution pairs a scanned reference with its resolved local URL.
type Substitution struct {
	Reference ExternalReference
	LocalURL  string
}

// StepResult is the outcome of one interactive processing step.
type StepResult struct {
	Complete    bool   `json:"complete"`
	DocumentID  uint   `json:"document_id,omitempty"`
	Title       string `json:"title,omitempty"`
	HadWarnings bool   `json:"had_warnings"`
	Remaining   int64  `json:"remaining"`
	Total       int64  `json:"total"`
}

// ProgressEvent is published to the events queue after a batch or step
type ProgressEvent struct {
	Type      string `json:"type"` // "batch_completed" or "step_completed"
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	RanAt     string `json:"ran_at"`
}

// AssetStoredMessage notifies the downstream media pipeline that a new
// asset was stored and may need renditions generated.
type AssetStoredMessage struct {
	Type        string `json:"type"` // "asset_stored"
	AssetID     uint   `json:"asset_id"`
	OriginURL   string `json:"origin_url"`
	StorageKey  string `json:"storage_key"`
	ContentType string `json:"content_type"`
}

// LockInfo describes the global processing lease.
type LockInfo struct {
	Held       bool
	Holder     string
	AcquiredAt time.Time
	Stale      bool
}
