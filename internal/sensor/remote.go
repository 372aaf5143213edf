package sensor

import (
	"context"
	"fmt"
	"strings"
)

// Platform is the operating system of the host a Runner executes on.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformUnknown Platform = "unknown"
)

// Commands used by the runner-backed sensors.
const (
	// Two aggregate samples 100ms apart in one round trip.
	linuxCPUCommand    = `head -n1 /proc/stat; sleep 0.1; head -n1 /proc/stat`
	linuxMemoryCommand = `cat /proc/meminfo`
	darwinCPUCommand   = `top -l 1 -n 0`
	darwinMemCommand   = `vm_stat; sysctl hw.memsize`
	platformCommand    = `uname -s`
)

// ParsePlatform converts uname -s output to a Platform.
func ParsePlatform(unameOutput string) Platform {
	switch strings.TrimSpace(unameOutput) {
	case "Linux":
		return PlatformLinux
	case "Darwin":
		return PlatformDarwin
	default:
		return PlatformUnknown
	}
}

// DetectPlatform asks the runner's host for its operating system.
func DetectPlatform(ctx context.Context, runner Runner) (Platform, error) {
	out, err := runner.Run(ctx, platformCommand)
	if err != nil {
		return PlatformUnknown, err
	}
	return ParsePlatform(string(out)), nil
}

type remoteCPUSensor struct {
	runner   Runner
	platform Platform
}

// RemoteCPU returns a "cpu" sensor that samples utilization through runner.
// Unknown platforms are treated as Linux.
func RemoteCPU(runner Runner, platform Platform) Sensor {
	return &remoteCPUSensor{runner: runner, platform: platform}
}

func (s *remoteCPUSensor) Name() string { return NameCPU }

func (s *remoteCPUSensor) Read(ctx context.Context) (float64, error) {
	if s.platform == PlatformDarwin {
		out, err := s.runner.Run(ctx, darwinCPUCommand)
		if err != nil {
			return 0, err
		}
		return ParseDarwinCPU(string(out))
	}

	out, err := s.runner.Run(ctx, linuxCPUCommand)
	if err != nil {
		return 0, err
	}
	samples, err := ParseProcStat(string(out))
	if err != nil {
		return 0, err
	}
	if len(samples) < 2 {
		return 0, fmt.Errorf("expected two /proc/stat samples, got %d", len(samples))
	}
	return CPUPercent(samples[0], samples[1]), nil
}

type remoteMemorySensor struct {
	runner   Runner
	platform Platform
}

// RemoteMemory returns a "memory" sensor that reads used memory through runner.
// Unknown platforms are treated as Linux.
func RemoteMemory(runner Runner, platform Platform) Sensor {
	return &remoteMemorySensor{runner: runner, platform: platform}
}

func (s *remoteMemorySensor) Name() string { return NameMemory }

func (s *remoteMemorySensor) Read(ctx context.Context) (float64, error) {
	if s.platform == PlatformDarwin {
		out, err := s.runner.Run(ctx, darwinMemCommand)
		if err != nil {
			return 0, err
		}
		return ParseDarwinMemory(string(out))
	}

	out, err := s.runner.Run(ctx, linuxMemoryCommand)
	if err != nil {
		return 0, err
	}
	return ParseMeminfo(string(out))
}
