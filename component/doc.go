// Package component defines the lifecycle contract shared by the long-lived
// parts of the executor (the alarm scheduler, the execution service) and a
// registry that starts them in order and stops them in reverse.
package component
