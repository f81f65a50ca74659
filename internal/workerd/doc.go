// Package workerd implements the captionerd inference worker: a SQLite-backed
// FIFO job queue, a single sequential processing loop, and the HTTP surface
// the daemon submits jobs to. Status and result callbacks flow back to the
// daemon over HTTP and are best-effort; a failed delivery never stops the
// loop.
package workerd
