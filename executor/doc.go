// Package executor wires the process runner, the shared alarm scheduler and
// the timeout handlers into a configurable service.
//
//	cfg, err := executor.LoadConfig()
//	svc, err := executor.New(cfg)
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Stop(context.Background())
//
//	st := svc.Run(ctx, process.Command{Args: []string{"sh", "run.sh"}, Timeout: time.Minute})
package executor
