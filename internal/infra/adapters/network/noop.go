package network

import (
	"context"

	"github.com/rs/zerolog"

	"captive-portal/internal/domain/ports/adapter"
)

var _ adapter.Disconnector = (*NoopDisconnector)(nil)

// NoopDisconnector only logs. Used when no router is configured.
type NoopDisconnector struct {
	log zerolog.Logger
}

func NewNoopDisconnector(logger *zerolog.Logger) *NoopDisconnector {
	return &NoopDisconnector{log: logger.With().Str("component", "NoopDisconnector").Logger()}
}

func (n *NoopDisconnector) Disconnect(ctx context.Context, identifier string) error {
	n.log.Debug().Msg("disconnect requested, no router configured")
	return nil
}
