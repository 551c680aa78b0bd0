package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

type TransportMode string

const (
	TransportHTTP TransportMode = "http"
	TransportGRPC TransportMode = "grpc"

	AgentName        = "aw-watcher-mpv"
	HardcodedVersion = "V0.3"
	EnvPrefix        = "AW_WATCHER_MPV"
)

// Config is loaded once when the watcher starts and never mutated afterwards.
type Config struct {
	Path                   string
	PollInterval           time.Duration
	PulseTime              time.Duration
	URL                    string
	LogLevel               string
	LogJSON                bool
	LogFile                string
	TrackedProperties      []string
	IdleProperty           string
	Socket                 string
	Transport              TransportMode
	RequestTimeout         time.Duration
	GRPCAddr               string
	GRPCCreateBucketMethod string
	GRPCHeartbeatMethod    string
	ProbeListenAddr        string
	AgentVersion           string
}

// fileConfig mirrors the on-disk JSON layout. Times are whole seconds.
type fileConfig struct {
	PollTime               float64  `mapstructure:"poll_time"`
	PulseTime              float64  `mapstructure:"pulse_time"`
	URL                    string   `mapstructure:"url"`
	LogLevel               string   `mapstructure:"log_level"`
	LogJSON                bool     `mapstructure:"log_json"`
	LogFile                string   `mapstructure:"log_file"`
	Properties             []string `mapstructure:"properties"`
	IdleProperty           string   `mapstructure:"idle_property"`
	Socket                 string   `mapstructure:"socket"`
	Transport              string   `mapstructure:"transport"`
	RequestTimeout         float64  `mapstructure:"request_timeout"`
	GRPCAddr               string   `mapstructure:"grpc_addr"`
	GRPCCreateBucketMethod string   `mapstructure:"grpc_create_bucket_method"`
	GRPCHeartbeatMethod    string   `mapstructure:"grpc_heartbeat_method"`
	ProbeAddr              string   `mapstructure:"probe_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_time", 5)
	v.SetDefault("pulse_time", 11)
	v.SetDefault("url", "http://127.0.0.1:5600/api/0")
	v.SetDefault("log_level", "error")
	v.SetDefault("log_json", false)
	v.SetDefault("log_file", "")
	v.SetDefault("properties", []string{"filename", "media-title"})
	v.SetDefault("idle_property", "core-idle")
	v.SetDefault("socket", defaultSocket())
	v.SetDefault("transport", string(TransportHTTP))
	v.SetDefault("request_timeout", 10)
	v.SetDefault("grpc_addr", "127.0.0.1:5601")
	v.SetDefault("grpc_create_bucket_method", "/aw.v1.ActivityService/CreateBucket")
	v.SetDefault("grpc_heartbeat_method", "/aw.v1.ActivityService/Heartbeat")
	v.SetDefault("probe_addr", "")
}

// Load reads {name}.json from path, or from Dir() when path is empty. A
// missing file is not an error: every field falls back to its default.
// Environment variables prefixed with AW_WATCHER_MPV_ override file values.
func Load(name, path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path == "" {
		dir, err := Dir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(dir, name+".json")
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		v.SetConfigType("json")
		if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(raw))); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg := Config{
		Path:                   path,
		PollInterval:           seconds(fc.PollTime),
		PulseTime:              seconds(fc.PulseTime),
		URL:                    strings.TrimRight(strings.TrimSpace(fc.URL), "/"),
		LogLevel:               strings.ToLower(strings.TrimSpace(fc.LogLevel)),
		LogJSON:                fc.LogJSON,
		LogFile:                strings.TrimSpace(fc.LogFile),
		TrackedProperties:      cleanProperties(fc.Properties),
		IdleProperty:           strings.TrimSpace(fc.IdleProperty),
		Socket:                 strings.TrimSpace(fc.Socket),
		Transport:              TransportMode(strings.ToLower(strings.TrimSpace(fc.Transport))),
		RequestTimeout:         seconds(fc.RequestTimeout),
		GRPCAddr:               strings.TrimSpace(fc.GRPCAddr),
		GRPCCreateBucketMethod: strings.TrimSpace(fc.GRPCCreateBucketMethod),
		GRPCHeartbeatMethod:    strings.TrimSpace(fc.GRPCHeartbeatMethod),
		ProbeListenAddr:        strings.TrimSpace(fc.ProbeAddr),
		AgentVersion:           HardcodedVersion,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll_time must be > 0")
	}
	if c.PulseTime < 0 {
		return errors.New("pulse_time must be >= 0")
	}
	if c.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if c.IdleProperty == "" {
		return errors.New("idle_property is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}
	switch c.Transport {
	case TransportHTTP:
	case TransportGRPC:
		if c.GRPCAddr == "" {
			return errors.New("grpc_addr is required for grpc transport")
		}
		if c.GRPCCreateBucketMethod == "" || c.GRPCHeartbeatMethod == "" {
			return errors.New("grpc methods are required for grpc transport")
		}
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	return nil
}

// PulseSeconds is the merge window in the unit the server expects.
func (c Config) PulseSeconds() float64 {
	return c.PulseTime.Seconds()
}

func seconds(v float64) time.Duration {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func cleanProperties(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
