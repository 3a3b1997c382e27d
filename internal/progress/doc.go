// Package progress stores advisory 0-100 progress values per job with a TTL,
// backed by Redis in production and process memory otherwise.
package progress
