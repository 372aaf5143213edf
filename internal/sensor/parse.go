package sensor

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CPUTimes holds aggregate jiffies from a /proc/stat "cpu" line.
type CPUTimes struct {
	Total int64
	Idle  int64 // idle + iowait
}

// ParseProcStat parses every aggregate "cpu " line in /proc/stat output,
// in order. Per-core lines (cpu0, cpu1, ...) are skipped.
func ParseProcStat(procStat string) ([]CPUTimes, error) {
	var samples []CPUTimes
	scanner := bufio.NewScanner(strings.NewReader(procStat))

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("invalid /proc/stat cpu line: %s", line)
		}

		// Fields: cpu user nice system idle iowait irq softirq steal guest guest_nice
		var t CPUTimes
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse cpu field %d: %w", i, err)
			}
			t.Total += val
			if i == 4 || i == 5 {
				t.Idle += val
			}
		}
		samples = append(samples, t)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning /proc/stat: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return samples, nil
}

// CPUPercent returns busy time between two samples as a percentage.
// Counter resets or an empty interval yield 0.
func CPUPercent(prev, cur CPUTimes) float64 {
	total := cur.Total - prev.Total
	idle := cur.Idle - prev.Idle
	if total <= 0 || idle < 0 {
		return 0
	}
	return float64(total-idle) / float64(total) * 100
}

// ParseMeminfo returns used memory in percent from /proc/meminfo output.
// Used is MemTotal - MemAvailable; kernels without MemAvailable fall back to
// MemTotal - MemFree - Buffers - Cached.
func ParseMeminfo(procMeminfo string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(procMeminfo))

	var memTotal, memFree, memAvailable, buffers, cached int64
	var haveAvailable bool
	foundFields := 0

	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		key := strings.TrimSuffix(parts[0], ":")
		val, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}

		switch key {
		case "MemTotal":
			memTotal = val
			foundFields++
		case "MemFree":
			memFree = val
			foundFields++
		case "MemAvailable":
			memAvailable = val
			haveAvailable = true
			foundFields++
		case "Buffers":
			buffers = val
			foundFields++
		case "Cached":
			cached = val
			foundFields++
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error scanning /proc/meminfo: %w", err)
	}
	if foundFields < 3 || memTotal <= 0 {
		return 0, fmt.Errorf("insufficient memory info found in /proc/meminfo")
	}

	used := memTotal - memFree - buffers - cached
	if haveAvailable {
		used = memTotal - memAvailable
	}
	return float64(used) / float64(memTotal) * 100, nil
}

// ParseDarwinCPU returns CPU utilization from `top -l 1 -n 0` output,
// computed as 100 minus the idle percentage.
func ParseDarwinCPU(topOutput string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(topOutput))

	for scanner.Scan() {
		line := scanner.Text()
		// "CPU usage: 5.26% user, 10.52% sys, 84.21% idle"
		if !strings.HasPrefix(line, "CPU usage:") {
			continue
		}
		for _, part := range strings.Split(line, ",") {
			part = strings.TrimSpace(part)
			if !strings.Contains(part, "idle") {
				continue
			}
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			idle, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
			if err != nil {
				return 0, fmt.Errorf("failed to parse idle percentage %q: %w", fields[0], err)
			}
			return 100 - idle, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error scanning top output: %w", err)
	}
	return 0, fmt.Errorf("no CPU usage line in top output")
}

// ParseDarwinMemory returns used memory in percent from vm_stat output
// followed by `sysctl hw.memsize`. Without hw.memsize the total is estimated
// from page counts.
func ParseDarwinMemory(vmStatOutput string) (float64, error) {
	scanner := bufio.NewScanner(strings.NewReader(vmStatOutput))

	pageSize := int64(16384)
	var pagesActive, pagesWired, pagesInactive, pagesSpeculative, pagesFree int64
	var pagesCompressed, pagesPurgeable int64
	var totalMemBytes int64

	for scanner.Scan() {
		line := scanner.Text()

		// "Mach Virtual Memory Statistics: (page size of 16384 bytes)"
		if idx := strings.Index(line, "page size of"); idx >= 0 {
			fields := strings.Fields(line[idx+len("page size of"):])
			if len(fields) >= 1 {
				if size, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
					pageSize = size
				}
			}
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:colonIdx])
		valStr := strings.TrimSuffix(strings.TrimSpace(line[colonIdx+1:]), ".")
		val, err := strconv.ParseInt(valStr, 10, 64)
		if err != nil {
			continue
		}

		switch key {
		case "hw.memsize":
			totalMemBytes = val
		case "Pages active":
			pagesActive = val
		case "Pages wired down":
			pagesWired = val
		case "Pages inactive":
			pagesInactive = val
		case "Pages speculative":
			pagesSpeculative = val
		case "Pages free":
			pagesFree = val
		case "Pages occupied by compressor":
			pagesCompressed = val
		case "Pages purgeable":
			pagesPurgeable = val
		}
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error scanning vm_stat output: %w", err)
	}

	usedPages := pagesActive + pagesWired + pagesCompressed
	availablePages := pagesFree + pagesInactive + pagesPurgeable + pagesSpeculative

	total := totalMemBytes
	if total <= 0 {
		total = (usedPages + availablePages) * pageSize
	}
	if total <= 0 {
		return 0, fmt.Errorf("no memory statistics in vm_stat output")
	}
	return float64(usedPages*pageSize) / float64(total) * 100, nil
}

// ParseFirstFloat returns the first whitespace-separated token of s that
// parses as a finite float. A trailing percent sign is ignored, and words
// like "nan" or "inf" are skipped.
func ParseFirstFloat(s string) (float64, error) {
	for _, field := range strings.Fields(s) {
		v, err := strconv.ParseFloat(strings.TrimSuffix(field, "%"), 64)
		if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no number in %q", strings.TrimSpace(s))
}
