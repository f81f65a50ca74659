// Package gateway is the contract between the daemon and the captionerd
// inference worker: an outbound client for job submission and cancellation,
// and an inbound receiver for the worker's asynchronous status and result
// callbacks. The receiver never assumes callback ordering; every transition
// it applies is guarded by the catalog state machine.
package gateway
