package topology

import (
	"context"
	"sync"

	"github.com/rileyhilliard/gorgon/internal/config"
	"github.com/rileyhilliard/gorgon/internal/logger"
	"github.com/rileyhilliard/gorgon/internal/sensor"
)

// remoteHost is shared by every crab that targets the same SSH host. The
// platform is detected on the first read, so an unreachable host fails its
// sensors at cycle time instead of failing Build.
type remoteHost struct {
	host   string
	runner sensor.Runner
	log    logger.Logger

	mu       sync.Mutex
	platform sensor.Platform
}

func newRemoteHost(host string, runner sensor.Runner, log logger.Logger) *remoteHost {
	return &remoteHost{host: host, runner: runner, log: log}
}

// detect returns the cached platform, asking the host on first use.
// Failures are not cached.
func (h *remoteHost) detect(ctx context.Context) (sensor.Platform, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.platform != "" {
		return h.platform, nil
	}
	p, err := sensor.DetectPlatform(ctx, h.runner)
	if err != nil {
		return "", err
	}
	if p == sensor.PlatformUnknown {
		h.log.Warn("unrecognized platform on %s, reading it like linux", h.host)
	}
	h.platform = p
	return p, nil
}

func (h *remoteHost) sensor(name, kind string) sensor.Sensor {
	return sensor.Func(name, func(ctx context.Context) (float64, error) {
		p, err := h.detect(ctx)
		if err != nil {
			return 0, err
		}
		if kind == config.KindCPU {
			return sensor.RemoteCPU(h.runner, p).Read(ctx)
		}
		return sensor.RemoteMemory(h.runner, p).Read(ctx)
	})
}
