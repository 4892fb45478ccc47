// Package alarm provides the shared timer service and the repeating watchdog
// built on it.
//
// One Scheduler serves the whole process. It is constructed explicitly,
// starts on first use and must be shut down when the process finishes:
//
//	sched := alarm.NewScheduler()
//	defer sched.Shutdown(ctx)
//
//	in := alarm.NewInterrupter()
//	a, err := alarm.Start(sched, 30*time.Second, in)
//	defer a.Cancel()
//	select {
//	case <-done:
//	case <-in.C():
//	}
package alarm
