// Package catalog persists importable items and watched sources in SQLite
// and owns every legal status transition. No other package writes item
// statuses directly; they go through the guarded transition methods so a
// stale or out-of-order update can never overwrite a terminal state.
package catalog
