// Package executor runs dependency-aware task graphs over a bounded worker
// pool. Submission validates the graph synchronously; execution captures
// every outcome, success or failure, into one result per task.
package executor
