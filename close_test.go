package forge

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCloser struct {
	closeErr   error
	closeCalls int
}

func (m *mockCloser) Close() error {
	m.closeCalls++
	return m.closeErr
}

func TestCloseWithLog(t *testing.T) {
	tests := []struct {
		name    string
		closer  *mockCloser
		wantLog []string
	}{
		{
			name:   "successful close logs nothing",
			closer: &mockCloser{},
		},
		{
			name:    "close error logs warning",
			closer:  &mockCloser{closeErr: errors.New("close failed: resource busy")},
			wantLog: []string{"failed to close resource", "audit mirror", "close failed", "level=WARN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logBuf, nil))

			CloseWithLog(tt.closer, logger, "audit mirror")

			assert.Equal(t, 1, tt.closer.closeCalls)
			if len(tt.wantLog) == 0 {
				assert.Empty(t, logBuf.String())
				return
			}
			for _, want := range tt.wantLog {
				assert.Contains(t, logBuf.String(), want)
			}
		})
	}
}

func TestCloseWithLog_NilCloser(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(nil, logger, "audit mirror")

	assert.Empty(t, logBuf.String())
}

func TestCloseWithLog_NilLogger(t *testing.T) {
	closer := &mockCloser{closeErr: errors.New("test error")}

	require.NotPanics(t, func() {
		CloseWithLog(closer, nil, "audit mirror")
	})
	assert.Equal(t, 1, closer.closeCalls)
}

func TestCloseWithLog_DeferPattern(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	first := &mockCloser{}
	second := &mockCloser{closeErr: errors.New("redis: connection reset")}

	func() {
		defer CloseWithLog(second, logger, "redis mirror")
		defer CloseWithLog(first, logger, "trace provider")
	}()

	assert.Equal(t, 1, first.closeCalls)
	assert.Equal(t, 1, second.closeCalls)
	assert.Contains(t, logBuf.String(), "redis mirror")
	assert.NotContains(t, logBuf.String(), "trace provider")
}
