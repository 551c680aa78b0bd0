package identity

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

const unknownHost = "unknown-host"

// Hostname asks the OS through gopsutil first and falls back to os.Hostname.
func Hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil {
		if h := strings.TrimSpace(info.Hostname); h != "" {
			return h
		}
	}
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h)
	}
	return unknownHost
}

// BucketID is the stable per-host bucket name all heartbeats are posted to.
func BucketID(agentName, hostname string) string {
	return fmt.Sprintf("%s_%s", agentName, hostname)
}
