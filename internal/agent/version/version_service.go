package version

import (
	"runtime"

	"aw-watcher-mpv/internal/config"
)

func Get(cfg config.Config) Info {
	return Info{
		Agent:        config.AgentName,
		AgentVersion: cfg.AgentVersion,
		Transport:    string(cfg.Transport),
		ConfigPath:   cfg.Path,
		GoVersion:    runtime.Version(),
	}
}
