package broadcast

import (
	"fmt"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"go.uber.org/zap"
)

// NewTransport creates a broadcast transport from configuration.
//
// A "memory" transport forms a private single-member scope: the tab still
// works, it just has no siblings. Cross-process scopes need "redis".
func NewTransport(logger *zap.Logger, cfg config.BroadcastConfig) (Transport, error) {
	channel := cfg.Channel
	if channel == "" {
		channel = "genwatch:state"
	}

	switch cfg.Type {
	case "redis":
		return NewRedisTransport(logger, channel, cfg.Redis)
	case "memory", "":
		return NewHub().Transport(logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnknownBroadcastType, cfg.Type)
	}
}
