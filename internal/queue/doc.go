// Package queue persists generation jobs in SQLite and provides the claim,
// transition, and listing operations the worker pool and CLI build on.
//
// A job row is the durable record of one generation request: the immutable
// input spec (scenes, style, narration, background track), the pipeline
// status, and the terminal outputs. Claims are atomic single-statement
// updates so concurrent worker slots never run the same job twice, and
// terminal rows are immutable except through an explicit retry reset.
package queue
