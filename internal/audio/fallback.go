package audio

import (
	"context"
	"errors"

	"talestrom/internal/domain"
	"talestrom/internal/ports"
)

// FallbackCapture tries the primary capture source and falls back to the
// secondary only when no device is available. Permission failures are not
// retried against the fallback: the user said no.
type FallbackCapture struct {
	primary  ports.AudioCapture
	fallback ports.AudioCapture
}

func NewFallbackCapture(primary ports.AudioCapture, fallback ports.AudioCapture) *FallbackCapture {
	return &FallbackCapture{primary: primary, fallback: fallback}
}

func (c *FallbackCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	session, err := c.primary.Start(ctx, cfg)
	if err == nil {
		return session, nil
	}
	if c.fallback == nil || !errors.Is(err, domain.ErrDeviceUnavailable) {
		return nil, err
	}
	return c.fallback.Start(ctx, cfg)
}
