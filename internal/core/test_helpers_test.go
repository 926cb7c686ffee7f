package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return NewRegistry(&logger)
}

// mustEnvelope waits for the next envelope of the given kind, skipping others.
func mustEnvelope(t *testing.T, ch <-chan Envelope, kind EnvelopeKind) Envelope {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-ch:
			if env.Kind == kind {
				return env
			}
		case <-deadline:
			t.Fatalf("expected envelope kind %v not received", kind)
			return Envelope{}
		}
	}
}

// mustNoEnvelope asserts that nothing is queued on the channel.
func mustNoEnvelope(t *testing.T, ch <-chan Envelope) {
	t.Helper()

	select {
	case env := <-ch:
		t.Fatalf("unexpected envelope: %+v", env)
	default:
	}
}
