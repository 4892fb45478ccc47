// Package timeout provides the diagnostic hooks run when a command exceeds
// its timeout.
//
// A Handler does the capture; the default ToolHandler runs a stack-dump
// utility found under the runtime's bin directory. A Guard wraps every
// invocation with its own watchdog, panic recovery and an optional circuit
// breaker, so a failing handler never affects the command's verdict.
// Provider maps configured names to handler factories.
//
//	g := timeout.NewGuard(sched)
//	h := timeout.NewProvider().Resolve("default", timeout.HandlerConfig{RuntimeRoot: jdk})
//	outcome := g.Invoke(ctx, h, proc)
package timeout
