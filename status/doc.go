// Package status defines the verdict of a test action and how it is derived
// from a child process.
//
// A Status is one of PASSED, FAILED, ERROR or NOT_RUN with a reason. A child
// may report its own Status by printing a line starting with ExitPrefix on
// stdout or stderr; otherwise a Policy interprets the exit code.
package status
