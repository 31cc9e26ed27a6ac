package audit

import (
	"context"
	"log/slog"
)

// Multi records to a primary recorder and any number of mirrors. Only the
// primary can fail a Record; mirror failures are logged and dropped.
type Multi struct {
	primary Recorder
	mirrors []Recorder
	logger  *slog.Logger
}

// NewMulti returns a Multi. A nil logger uses slog.Default.
func NewMulti(logger *slog.Logger, primary Recorder, mirrors ...Recorder) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{primary: primary, mirrors: mirrors, logger: logger}
}

// Record writes e to the primary first and then to each mirror.
func (m *Multi) Record(ctx context.Context, e Entry) error {
	if err := m.primary.Record(ctx, e); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Record(ctx, e); err != nil {
			m.logger.Warn("audit mirror failed",
				"stage", e.Stage,
				"packet_id", e.PacketID,
				"error", err,
			)
		}
	}
	return nil
}

// Discard drops every entry.
type Discard struct{}

// Record does nothing.
func (Discard) Record(context.Context, Entry) error {
	return nil
}
