package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/MrEthical07/authfront/metrics"
)

const (
	// DefaultInterval matches the refresh period of the users gauge.
	DefaultInterval = 60000 * time.Millisecond
	// DefaultTimeout bounds a single call to the count source.
	DefaultTimeout = 10 * time.Second
)

var (
	ErrNilGauge       = errors.New("nil gauge")
	ErrNilSource      = errors.New("nil count source")
	ErrAlreadyStarted = errors.New("sampler already started")
	ErrInvalidConfig  = errors.New("invalid sampler config")
	// ErrSourcePanic wraps a panic raised by the count source.
	ErrSourcePanic = errors.New("count source panicked")
)

// CountSource returns the current value to publish.
type CountSource interface {
	Count(ctx context.Context) (int64, error)
}

// CountFunc adapts a function to [CountSource].
type CountFunc func(ctx context.Context) (int64, error)

func (f CountFunc) Count(ctx context.Context) (int64, error) { return f(ctx) }

// Config controls sampling cadence.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Validate fills zero fields with defaults and rejects inconsistent values.
func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("%w: interval must be > 0", ErrInvalidConfig)
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = min(DefaultTimeout, c.Interval)
	}
	if c.Timeout < 0 || c.Timeout > c.Interval {
		return fmt.Errorf("%w: timeout must be in (0, interval]", ErrInvalidConfig)
	}
	return nil
}

// Option customizes a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger used to report failed samples.
func WithLogger(l log.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFailureCounter counts failed samples.
func WithFailureCounter(c *metrics.Counter) Option {
	return func(s *Sampler) { s.failures = c }
}

// Sampler periodically copies a CountSource value into a gauge.
type Sampler struct {
	gauge    *metrics.Gauge
	source   CountSource
	cfg      Config
	logger   log.Logger
	failures *metrics.Counter

	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New validates cfg and returns an idle sampler.
func New(gauge *metrics.Gauge, source CountSource, cfg Config, opts ...Option) (*Sampler, error) {
	if gauge == nil {
		return nil, ErrNilGauge
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{
		gauge:  gauge,
		source: source,
		cfg:    cfg,
		logger: log.NewNopLogger(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Interval reports the effective tick interval.
func (s *Sampler) Interval() time.Duration { return s.cfg.Interval }

// Start takes one sample immediately, then keeps sampling every interval until
// ctx is cancelled or Stop is called. Sampling failures never surface here.
func (s *Sampler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.sample(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sample(ctx)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Stop halts the background loop and waits for an in-flight sample to finish.
// It is safe to call more than once and before Start.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// SampleNow performs one sample and returns its error, if any. The gauge is
// updated only on success.
func (s *Sampler) SampleNow(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	n, err := s.count(ctx)
	if err != nil {
		return err
	}
	s.gauge.Set(float64(n))
	return nil
}

func (s *Sampler) sample(ctx context.Context) {
	if err := s.SampleNow(ctx); err != nil {
		s.failures.Inc()
		level.Error(s.logger).Log("msg", "count sample failed", "gauge", s.gauge.Name(), "err", err)
	}
}

func (s *Sampler) count(ctx context.Context) (n int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanic, p)
		}
	}()
	return s.source.Count(ctx)
}
