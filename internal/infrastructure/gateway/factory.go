package gateway

import (
	"fmt"
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"go.uber.org/zap"
)

// Config selects and configures the gateway variant
type Config struct {
	// Mode is "remote" or "local". Empty picks remote when a base URL is
	// configured and local otherwise.
	Mode            trade.GatewayMode
	Remote          RemoteConfig
	SalesLatency    time.Duration
	PurchaseLatency time.Duration
	LockTTL         time.Duration
}

// Dependencies are the collaborators a gateway may need
type Dependencies struct {
	// Store is required in local mode
	Store trade.KeyValueStore
	// Locker is optional
	Locker   trade.Locker
	Recorder Recorder
	Logger   *zap.Logger
}

// ResolveMode returns the mode New would construct for cfg
func ResolveMode(cfg Config) trade.GatewayMode {
	if cfg.Mode != "" {
		return cfg.Mode
	}
	if cfg.Remote.BaseURL != "" {
		return trade.GatewayModeRemote
	}
	return trade.GatewayModeLocal
}

// New constructs the gateway for one direction. The mode is decided here,
// once; the returned gateway never switches to the other variant.
func New(direction trade.Direction, cfg Config, deps Dependencies) (trade.SubmissionGateway, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("direction", direction.String()))

	var (
		gw  trade.SubmissionGateway
		err error
	)
	switch mode := ResolveMode(cfg); mode {
	case trade.GatewayModeRemote:
		gw, err = NewRemoteGateway(direction, cfg.Remote, logger)
	case trade.GatewayModeLocal:
		gw, err = NewLocalGateway(direction, deps.Store, deps.Locker, LocalConfig{
			Latency: latencyFor(direction, cfg),
			LockTTL: cfg.LockTTL,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Submission gateway ready", zap.String("mode", string(gw.Mode())))
	return Instrument(gw, deps.Recorder), nil
}

func latencyFor(direction trade.Direction, cfg Config) time.Duration {
	if direction == trade.DirectionPurchase {
		return cfg.PurchaseLatency
	}
	return cfg.SalesLatency
}
