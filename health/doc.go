// Package health checks the dependencies a forge pipeline needs before it
// runs: the generator binary, a writable state root, a readable audit log,
// and the optional Redis audit mirror.
//
// Each check returns a Status. Combine folds several into one verdict using
// the usual precedence: any unhealthy check makes the result unhealthy, else
// any degraded check makes it degraded.
//
//	report := health.Combine(
//	    health.GeneratorCheck("codex"),
//	    health.StateRootCheck(".forge-state"),
//	    health.AuditLogCheck(audit.DefaultPath(".forge-state")),
//	)
//	if report.IsUnhealthy() {
//	    log.Fatal(report.Message)
//	}
package health
