package logging

import "log/slog"

// Standardized attribute keys shared across components.
const (
	FieldComponent = "component"
	FieldItemID    = "item_id"
	FieldSourceID  = "source_id"
	FieldOperation = "operation_id"
	FieldSession   = "session"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func ItemID(id int64) slog.Attr { return slog.Int64(FieldItemID, id) }

func SourceID(id int64) slog.Attr { return slog.Int64(FieldSourceID, id) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
