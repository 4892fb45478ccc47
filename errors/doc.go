// Package errors provides the structured error type shared by the executor
// packages. Errors carry a machine-readable code, a human-readable message,
// optional details and an underlying cause.
package errors
