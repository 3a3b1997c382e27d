// Package pipeline drives one generation job from claim to terminal state.
//
// The orchestrator owns the stage walk (scene generation, optional
// voiceover, composition, publishing), the per-job workspace lifecycle, the
// status transitions persisted to the queue store, and the advisory progress
// published per stage band. Every external system sits behind an interface
// declared here or in the packages it composes.
package pipeline
