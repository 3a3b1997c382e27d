// Package worker drains the job queue with a fixed-size pool.
//
// Each worker claims one pending job at a time and runs it through the
// pipeline under a per-job wall-clock timeout. Failed attempts are retried
// with exponential backoff up to the configured attempt budget; after the
// final attempt the job stays failed.
package worker
