// Package narration adapts the speech synthesis backend that turns a job's
// script into a voiceover audio file.
package narration
