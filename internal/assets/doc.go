// Package assets publishes finished job artifacts to object storage.
//
// Two implementations share the Store contract: GCSStore for production and
// LocalStore for development and tests. Both derive object keys from the job
// id and artifact kind, and both treat deleting an already-missing object as
// success so cleanup can be retried safely.
package assets
