// Package process launches child processes for test actions and derives
// their verdict.
//
// A Runner starts the child with a replacement environment and a closed
// stdin, drains stdout and stderr concurrently through StreamCopiers, and
// watches both streams for a self-reported status line. With a timeout set
// it arms a one-shot task on the shared alarm.Scheduler; when that fires the
// timeout handler captures diagnostics, then the child's process group is
// killed and the result is an ERROR that says it timed out.
//
//	r := process.NewRunner(sched)
//	st := r.Run(ctx, process.Command{
//		Args:    []string{"java", "-cp", cp, "Main"},
//		Env:     env,
//		Stdout:  out,
//		Stderr:  errOut,
//		Timeout: 2 * time.Minute,
//	})
package process
