package admission

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultCPUSampleInterval = 2 * time.Second

// CPULoadProvider returns the current system load average value.
type CPULoadProvider func() (float64, error)

// ReadSystemLoad reads the 1-minute load average from /proc/loadavg.
func ReadSystemLoad() (float64, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	return parseLoadAvg(string(data))
}

func parseLoadAvg(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("loadavg parse: no fields")
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("loadavg parse: %w", err)
	}
	return load, nil
}

// RunCPUSampler feeds load samples into c until ctx is canceled. It takes one
// sample immediately. Provider errors skip the sample.
func RunCPUSampler(ctx context.Context, c *Controller, interval time.Duration, provider CPULoadProvider) {
	if c == nil {
		return
	}
	if interval <= 0 {
		interval = defaultCPUSampleInterval
	}
	if provider == nil {
		provider = ReadSystemLoad
	}

	sample := func() {
		load, err := provider()
		if err != nil {
			return
		}
		c.ObserveCPULoad(load)
	}
	sample()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
