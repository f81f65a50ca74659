// Package api defines wire-format types and converters for the daemon's HTTP
// surface. It translates internal catalog models into transport-friendly DTOs
// so HTTP consumers never couple to internal types.
//
// # Key Types
//
// Item/Source: transport representations of catalog rows; statuses are exposed
// both as lowercase names and as the numeric wire codes the worker uses.
//
// BulkStartRequest/BulkProgressResponse: the launch and progress protocol for
// bulk captioning operations.
//
// DaemonStatus: aggregated runtime information including worker reachability.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the callback payloads exchanged with
// the inference worker. Timestamps use RFC3339.
package api
