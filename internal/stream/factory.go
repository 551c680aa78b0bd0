package stream

import (
	"fmt"
	"log/slog"

	"aw-watcher-mpv/internal/config"
)

func NewTransportFromConfig(cfg config.Config, logger *slog.Logger) (Transport, error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		return NewHTTPClient(cfg.URL, cfg.RequestTimeout, logger), nil
	case config.TransportGRPC:
		return NewGRPCClient(
			cfg.GRPCAddr,
			cfg.GRPCCreateBucketMethod,
			cfg.GRPCHeartbeatMethod,
			cfg.RequestTimeout,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}
