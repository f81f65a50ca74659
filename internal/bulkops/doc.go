// Package bulkops coordinates batch captioning requests. A bulk operation
// snapshots the matching item identifiers once at submission time; progress
// is always recomputed from exactly that snapshot, never by re-running the
// filter, so items created or newly matching later can never drift into an
// operation's accounting. Operations are scoped to the requesting session.
package bulkops
