package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SystemClock implements ports.Clock using wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator issues time-ordered UUIDv7 values so report, vote and outbox
// ids sort by creation.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
