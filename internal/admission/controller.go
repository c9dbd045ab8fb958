// Package admission bounds how many decoder processes run at once and how
// fast new ones are spawned.
package admission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/ManuGH/tempy/internal/metrics"
)

// ErrRejected is returned by Acquire when no slot could be granted.
var ErrRejected = errors.New("admission rejected")

// Reason is the admission outcome. Values are lowercase for stable PromQL queries.
type Reason string

const (
	ReasonAdmitted     Reason = "admitted"
	ReasonPoolFull     Reason = "pool_full"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonCPUSaturated Reason = "cpu_saturated"
	ReasonCanceled     Reason = "canceled"
)

// RejectionError carries the reason and a retry hint for HTTP callers.
type RejectionError struct {
	Reason     Reason
	RetryAfter time.Duration
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("admission rejected: %s", e.Reason)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// Config holds the admission limits. Zero values fall back to defaults.
type Config struct {
	// MaxConcurrent is the number of decoders allowed to run at once.
	MaxConcurrent int
	// SpawnRate is the sustained spawn rate per second; SpawnBurst its bucket size.
	SpawnRate  float64
	SpawnBurst int
	// QueueTimeout bounds how long Acquire waits for a slot before rejecting.
	QueueTimeout time.Duration
	// CPUThresholdScale rejects new decoders while the 1m load average exceeds
	// cores*scale. Zero disables the check.
	CPUThresholdScale float64
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 4,
		SpawnRate:     8,
		SpawnBurst:    8,
		QueueTimeout:  5 * time.Second,
	}
}

// Controller grants decoder slots.
type Controller struct {
	cfg     Config
	slots   *semaphore.Weighted
	limiter *rate.Limiter
	cores   float64

	inUse   atomic.Int64
	cpuLoad atomic.Uint64 // math.Float64bits of the latest sample
}

// New creates a controller from cfg.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.SpawnRate <= 0 {
		cfg.SpawnRate = def.SpawnRate
	}
	if cfg.SpawnBurst <= 0 {
		cfg.SpawnBurst = def.SpawnBurst
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = def.QueueTimeout
	}
	return &Controller{
		cfg:     cfg,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: rate.NewLimiter(rate.Limit(cfg.SpawnRate), cfg.SpawnBurst),
		cores:   float64(runtime.NumCPU()),
	}
}

// Acquire waits for a decoder slot and a spawn token. The returned release
// func must be called once the decoder has exited; extra calls are no-ops.
//
// Cancellation of ctx is returned as the context error. Every other failure
// is a *RejectionError.
func (c *Controller) Acquire(ctx context.Context) (release func(), err error) {
	start := time.Now()
	defer func() {
		metrics.AdmissionWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if c.cpuSaturated() {
		return nil, c.reject(ReasonCPUSaturated, c.cfg.QueueTimeout)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.QueueTimeout)
	defer cancel()

	if err := c.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			metrics.AdmissionTotal.WithLabelValues(string(ReasonCanceled)).Inc()
			return nil, ctx.Err()
		}
		return nil, c.reject(ReasonPoolFull, time.Second)
	}

	if err := c.limiter.Wait(waitCtx); err != nil {
		c.slots.Release(1)
		if ctx.Err() != nil {
			metrics.AdmissionTotal.WithLabelValues(string(ReasonCanceled)).Inc()
			return nil, ctx.Err()
		}
		return nil, c.reject(ReasonRateLimited, time.Duration(float64(time.Second)/c.cfg.SpawnRate)+time.Second)
	}

	metrics.AdmissionTotal.WithLabelValues(string(ReasonAdmitted)).Inc()
	metrics.DecoderSlotsInUse.Set(float64(c.inUse.Add(1)))

	var once sync.Once
	return func() {
		once.Do(func() {
			metrics.DecoderSlotsInUse.Set(float64(c.inUse.Add(-1)))
			c.slots.Release(1)
		})
	}, nil
}

// InUse reports the number of granted, unreleased slots.
func (c *Controller) InUse() int {
	return int(c.inUse.Load())
}

// Capacity reports the configured concurrency limit.
func (c *Controller) Capacity() int {
	return c.cfg.MaxConcurrent
}

// ObserveCPULoad records the latest 1m load average.
func (c *Controller) ObserveCPULoad(load float64) {
	c.cpuLoad.Store(math.Float64bits(load))
	metrics.CPULoad.Set(load)
}

func (c *Controller) cpuSaturated() bool {
	if c.cfg.CPUThresholdScale <= 0 {
		return false
	}
	load := math.Float64frombits(c.cpuLoad.Load())
	return load > c.cores*c.cfg.CPUThresholdScale
}

func (c *Controller) reject(reason Reason, retry time.Duration) error {
	metrics.AdmissionTotal.WithLabelValues(string(reason)).Inc()
	return &RejectionError{Reason: reason, RetryAfter: retry.Round(time.Second)}
}
