// Package services defines the shared error taxonomy and context annotations
// used across pipeline stages and provider adapters.
//
// Errors are tagged with sentinel markers (validation, provider, timeout,
// composition, storage, not-found) via Wrap, so the orchestrator and the queue
// consumer can classify failures with errors.Is without string matching.
package services
