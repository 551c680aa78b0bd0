package watcher

import (
	"context"
	"log/slog"

	"aw-watcher-mpv/internal/logging"
)

// PropertyLister lists every property name the player exposes.
type PropertyLister interface {
	PropertyNames(ctx context.Context) ([]string, error)
}

// ValidateProperties keeps the tracked properties the player actually
// exposes, in their configured order. Repeated names are kept once. A failed
// listing yields an empty set, which callers must treat as a startup failure.
//
// It runs once per watcher lifetime. The player may not have registered every
// property yet when it is called; that race is accepted.
func ValidateProperties(ctx context.Context, lister PropertyLister, tracked []string, logger *slog.Logger) []string {
	names, err := lister.PropertyNames(ctx)
	if err != nil {
		logging.Fatal(logger, "could not list player properties", "error", err)
		return nil
	}

	available := make(map[string]struct{}, len(names))
	for _, n := range names {
		available[n] = struct{}{}
	}

	seen := make(map[string]struct{}, len(tracked))
	out := make([]string, 0, len(tracked))
	for _, p := range tracked {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, ok := available[p]; !ok {
			logger.Error("property does not exist", "property", p)
			continue
		}
		logger.Info("property validated", "property", p)
		out = append(out, p)
	}
	return out
}
