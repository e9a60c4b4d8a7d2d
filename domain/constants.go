package domain

// Document processing statuses (stored verbatim in the documents table).
const (
	StatusUnprocessed = "unprocessed"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Reference kinds.
const (
	RefKindImage = "image"
	RefKindFile  = "file"
)

const (
	// Redis Keys
	RedisKeyRunLock = "localizer:runlock"
	RedisKeyLastRun = "localizer:last_run"

	// Lease holders
	HolderInteractive = "interactive"

	// Message Types
	MsgTypeAssetStored    = "asset_stored"
	MsgTypeBatchCompleted = "batch_completed"
	MsgTypeStepCompleted  = "step_completed"
)

// LinkedFileExtensions are the hyperlink target extensions treated as
// downloadable documents. Matching is case-insensitive.
var LinkedFileExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "zip", "rar"}
