package bulkops

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"memedex/internal/catalog"
)

// Record is the session-persisted snapshot of one bulk operation. Every key
// is a plain string on write and on read; the round-trip is covered by a test
// because a key-representation mismatch here silently breaks progress
// accounting.
type Record struct {
	OperationID  string            `json:"operation_id"`
	TotalCount   int               `json:"total_count"`
	StartedAt    int64             `json:"started_at"`
	ItemIDs      []int64           `json:"item_ids"`
	FilterParams map[string]string `json:"filter_params"`
}

// Encode serializes the record for session storage.
func (r *Record) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode bulk record: %w", err)
	}
	return string(data), nil
}

// DecodeRecord parses a stored session payload.
func DecodeRecord(payload string) (*Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("decode bulk record: %w", err)
	}
	return &record, nil
}

// ParamsFromFilter flattens a filter into the write-only metadata stored on
// the record. The filter is never reapplied after the snapshot.
func ParamsFromFilter(filter catalog.Filter) map[string]string {
	params := make(map[string]string)
	if filter.SourceID > 0 {
		params["source_id"] = strconv.FormatInt(filter.SourceID, 10)
	}
	if trimmed := strings.TrimSpace(filter.NameContains); trimmed != "" {
		params["name_contains"] = trimmed
	}
	if filter.MissingDescription {
		params["missing_description"] = "true"
	}
	if filter.Status != nil {
		params["status"] = filter.Status.String()
	}
	return params
}

// FilterFromParams rebuilds a filter from stored metadata. Used only for
// display and debugging, never for progress computation.
func FilterFromParams(params map[string]string) catalog.Filter {
	var filter catalog.Filter
	if raw, ok := params["source_id"]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.SourceID = id
		}
	}
	if raw, ok := params["name_contains"]; ok {
		filter.NameContains = raw
	}
	if params["missing_description"] == "true" {
		filter.MissingDescription = true
	}
	if raw, ok := params["status"]; ok {
		if status, valid := catalog.ParseStatus(raw); valid {
			filter.Status = &status
		}
	}
	return filter
}
