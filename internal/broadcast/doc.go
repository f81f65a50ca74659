// Package broadcast publishes per-item status and description changes to
// subscribed observers. Delivery is best-effort and at-most-once per
// subscriber; a slow consumer loses events rather than blocking publishers.
package broadcast
