package catalog

import (
	"strings"
	"time"
)

// Status represents the captioning lifecycle of one item. The numeric values
// are the wire values exchanged with the inference worker.
type Status int

const (
	StatusNotStarted Status = 0
	StatusInQueue    Status = 1
	StatusProcessing Status = 2
	StatusDone       Status = 3
	StatusRemoving   Status = 4
	StatusFailed     Status = 5
)

var statusNames = map[Status]string{
	StatusNotStarted: "not_started",
	StatusInQueue:    "in_queue",
	StatusProcessing: "processing",
	StatusDone:       "done",
	StatusRemoving:   "removing",
	StatusFailed:     "failed",
}

// AllStatuses returns the known statuses in wire order.
func AllStatuses() []Status {
	return []Status{StatusNotStarted, StatusInQueue, StatusProcessing, StatusDone, StatusRemoving, StatusFailed}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the value is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// InFlight reports whether a job for the item exists on the worker side.
func (s Status) InFlight() bool {
	return s == StatusInQueue || s == StatusProcessing
}

// ParseStatus converts a status name into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for status, name := range statusNames {
		if name == normalized {
			return status, true
		}
	}
	return 0, false
}

// StatusFromCode validates a wire value received from the worker.
func StatusFromCode(code int) (Status, bool) {
	status := Status(code)
	return status, status.Valid()
}

// Item represents one importable image persisted in SQLite.
type Item struct {
	ID           int64
	SourceID     int64
	RelPath      string
	Title        string
	Description  string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScanStatus describes the current scan state of a watched source.
type ScanStatus string

const (
	ScanIdle     ScanStatus = "idle"
	ScanScanning ScanStatus = "scanning"
	ScanFailed   ScanStatus = "failed"
)

// WatchedSource is a directory eligible for periodic automatic re-scanning.
// A nil AutoScanFrequency means the source is never due.
type WatchedSource struct {
	ID                  int64
	Path                string
	Title               string
	AutoScanEnabled     bool
	AutoScanFrequency   *int // seconds
	NextAutoScanAt      *time.Time
	ConsecutiveFailures int
	ScanStatus          ScanStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Schedulable reports whether the scheduler may consider this source at all,
// independent of due time and breaker state.
func (w WatchedSource) Schedulable() bool {
	return w.AutoScanEnabled && w.AutoScanFrequency != nil
}

// Stats aggregates item counts per status.
type Stats struct {
	Total      int
	PerStatus  map[Status]int
	Done       int
	Failed     int
	InFlight   int
	NotStarted int
}
