package api

import (
	"time"

	"memedex/internal/catalog"
)

// FromItem converts a catalog item to its wire form.
func FromItem(item *catalog.Item) Item {
	view := Item{
		ID:           item.ID,
		SourceID:     item.SourceID,
		RelPath:      item.RelPath,
		Title:        item.Title,
		Description:  item.Description,
		Status:       item.Status.String(),
		StatusCode:   int(item.Status),
		ErrorMessage: item.ErrorMessage,
	}
	if !item.CreatedAt.IsZero() {
		view.CreatedAt = item.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !item.UpdatedAt.IsZero() {
		view.UpdatedAt = item.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

// FromItems converts a slice of catalog items.
func FromItems(items []*catalog.Item) []Item {
	views := make([]Item, 0, len(items))
	for _, item := range items {
		views = append(views, FromItem(item))
	}
	return views
}

// FromSource converts a watched source to its wire form.
func FromSource(source *catalog.WatchedSource) Source {
	view := Source{
		ID:                  source.ID,
		Path:                source.Path,
		Title:               source.Title,
		AutoScanEnabled:     source.AutoScanEnabled,
		AutoScanFrequency:   source.AutoScanFrequency,
		ConsecutiveFailures: source.ConsecutiveFailures,
		ScanStatus:          string(source.ScanStatus),
	}
	if source.NextAutoScanAt != nil {
		view.NextAutoScanAt = source.NextAutoScanAt.UTC().Format(time.RFC3339)
	}
	return view
}

// FromSources converts a slice of watched sources.
func FromSources(sources []*catalog.WatchedSource) []Source {
	views := make([]Source, 0, len(sources))
	for _, source := range sources {
		views = append(views, FromSource(source))
	}
	return views
}

// FromStats converts aggregate catalog counts.
func FromStats(stats catalog.Stats) StatsResponse {
	perStatus := make(map[string]int, len(stats.PerStatus))
	for status, count := range stats.PerStatus {
		perStatus[status.String()] = count
	}
	return StatsResponse{
		Total:      stats.Total,
		PerStatus:  perStatus,
		InFlight:   stats.InFlight,
		Done:       stats.Done,
		Failed:     stats.Failed,
		NotStarted: stats.NotStarted,
	}
}
