// Package audit records every rejected stage result for offline analysis.
//
// The durable record is a newline-delimited JSON file under the process state
// root, written append-only with one write per entry so interleaved writers
// never split a line. Optional recorders mirror entries to Redis for live
// operator display and count them as Prometheus metrics; Multi combines them
// so that only the durable file can fail a Record call.
//
//	log := audit.NewFileLog(audit.DefaultPath(stateRoot))
//	if entry, ok := audit.BuildEntry(result, pkt); ok {
//		if err := log.Record(ctx, entry); err != nil {
//			return err
//		}
//	}
package audit
