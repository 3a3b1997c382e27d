// Command montage is the operator CLI for the generation queue: submitting
// jobs, inspecting status and progress, listing the queue, requeueing failed
// jobs, and managing configuration.
package main
