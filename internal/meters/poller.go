package meters

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/gateway"
)

// Source performs gateway calls.
type Source interface {
	Call(ctx context.Context, r gateway.Request) (gateway.Sample, error)
}

// Poller reads the meters on a fixed interval. A producer goroutine polls
// and queues readings; a consumer hands each to every sink in turn.
type Poller struct {
	source   Source
	path     string
	interval time.Duration
	buffer   int
	sinks    []Sink
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewPoller creates a poller for the meter reports at cfg.Path. A
// non-positive interval or negative buffer falls back to the defaults.
func NewPoller(source Source, cfg config.MetersConfig, log logrus.FieldLogger, sinks ...Sink) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultMetersInterval
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = config.DefaultMetersBuffer
	}
	return &Poller{
		source:   source,
		path:     cfg.Path,
		interval: cfg.Interval,
		buffer:   cfg.Buffer,
		sinks:    sinks,
		log:      log,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled, which is a clean shutdown, or the
// gateway session expires. Queued readings are still delivered to the
// sinks before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	readings := make(chan Reading, p.buffer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.consume(context.WithoutCancel(ctx), readings)
	}()

	err := p.produce(ctx, readings)
	close(readings)
	wg.Wait()
	return err
}

func (p *Poller) produce(ctx context.Context, readings chan<- Reading) error {
	p.log.Info("Collecting meter readings")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		reading, err := p.poll(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case stderrors.Is(err, errors.ErrSessionExpired):
			return err
		case err != nil:
			p.log.WithError(err).Error("Failed to read meters")
		default:
			select {
			case readings <- reading:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Poller) poll(ctx context.Context) (Reading, error) {
	sample, err := p.source.Call(ctx, gateway.Request{Path: p.path})
	if err != nil {
		return Reading{}, err
	}
	return ParseReading(p.now(), []byte(sample.Body))
}

func (p *Poller) consume(ctx context.Context, readings <-chan Reading) {
	for reading := range readings {
		for _, sink := range p.sinks {
			if err := sink.Write(ctx, reading); err != nil {
				p.log.WithField("sink", sink.Name()).WithError(err).Error("Failed to record meter reading")
			}
		}
	}
}
