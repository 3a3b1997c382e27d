// Package scenegen adapts the remote scene generation backend.
//
// Generation is asynchronous on the provider side: Generate submits a task,
// polls it at a fixed interval up to a bounded attempt count, then downloads
// the finished clip into the job workspace. Provider-reported failures
// classify as provider errors; an exhausted poll budget classifies as a
// timeout.
package scenegen
