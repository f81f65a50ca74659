package api

// Item is the wire representation of a catalog item.
type Item struct {
	ID           int64  `json:"id"`
	SourceID     int64  `json:"source_id"`
	RelPath      string `json:"rel_path"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// Source is the wire representation of a watched source directory.
type Source struct {
	ID                  int64  `json:"id"`
	Path                string `json:"path"`
	Title               string `json:"title,omitempty"`
	AutoScanEnabled     bool   `json:"auto_scan_enabled"`
	AutoScanFrequency   *int   `json:"auto_scan_frequency,omitempty"`
	NextAutoScanAt      string `json:"next_auto_scan_at,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	ScanStatus          string `json:"scan_status"`
}

// ItemListResponse wraps item listings.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// ItemResponse wraps a single item lookup.
type ItemResponse struct {
	Item Item `json:"item"`
}

// SourceListResponse wraps source listings.
type SourceListResponse struct {
	Sources []Source `json:"sources"`
}

// SourceResponse wraps a single source lookup.
type SourceResponse struct {
	Source Source `json:"source"`
}

// AddSourceRequest registers a new watched source.
type AddSourceRequest struct {
	Path              string `json:"path"`
	Title             string `json:"title,omitempty"`
	AutoScanFrequency *int   `json:"auto_scan_frequency,omitempty"`
}

// GenerateRequest asks for a caption job on one item.
type GenerateRequest struct {
	Model string `json:"model,omitempty"`
}

// ActionResponse reports whether a per-item action took effect. Actions that
// no longer apply (already in flight, already terminal, unknown id) report
// applied=false rather than an error.
type ActionResponse struct {
	Applied bool `json:"applied"`
}

// BulkStartRequest launches a bulk captioning operation over a filter.
type BulkStartRequest struct {
	SourceID           int64  `json:"source_id,omitempty"`
	NameContains       string `json:"name_contains,omitempty"`
	MissingDescription bool   `json:"missing_description,omitempty"`
	Status             string `json:"status,omitempty"`
	Model              string `json:"model,omitempty"`
}

// BulkStartResponse reports the snapshot taken at launch.
type BulkStartResponse struct {
	OperationID string `json:"operation_id"`
	TotalCount  int    `json:"total_count"`
	StartedAt   int64  `json:"started_at"`
}

// BulkProgressResponse reports live progress for one bulk operation.
type BulkProgressResponse struct {
	OperationID string         `json:"operation_id"`
	Counts      map[string]int `json:"counts"`
	TotalCount  int            `json:"total_count"`
	IsComplete  bool           `json:"is_complete"`
	StartedAt   int64          `json:"started_at"`
}

// BulkCancelResponse reports how many items a bulk cancel reached.
type BulkCancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// StatsResponse aggregates catalog counts for the status endpoint.
type StatsResponse struct {
	Total      int            `json:"total"`
	PerStatus  map[string]int `json:"per_status"`
	InFlight   int            `json:"in_flight"`
	Done       int            `json:"done"`
	Failed     int            `json:"failed"`
	NotStarted int            `json:"not_started"`
}

// DaemonStatus is the /api/status payload.
type DaemonStatus struct {
	Running          bool          `json:"running"`
	CatalogDBPath    string        `json:"catalog_db_path"`
	LockFilePath     string        `json:"lock_file_path"`
	Stats            StatsResponse `json:"stats"`
	WorkerReachable  bool          `json:"worker_reachable"`
	WorkerQueueDepth int           `json:"worker_queue_depth"`
}
