// Package logging builds the slog loggers used across Montage and defines the
// standardized structured field names for jobs, stages, and correlation ids.
//
// Console output is a compact single-line format for interactive use; JSON
// output targets log shippers. WithContext derives per-job fields from a
// services-annotated context so stage code never repeats them by hand.
package logging
