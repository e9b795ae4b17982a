package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func uuid4(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
