// Package worker runs background jobs off the request path on a fixed set of
// goroutines fed by a bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultWorkers   = 8
	DefaultQueueSize = 1024

	instrumentationName = "github.com/freekieb7/webapi/worker"
)

var ErrStopped = errors.New("worker: pool stopped")

// Job is a unit of background work. A panicking job is recovered and logged;
// it never takes its worker or the process down.
type Job func()

type Options struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Meter     metric.Meter
}

type Pool struct {
	queue   *RingBuffer[Job]
	wake    chan struct{}
	done    chan struct{}
	workers int
	logger  *slog.Logger

	jobCounter   metric.Int64Counter
	panicCounter metric.Int64Counter
	panics       atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
	wg        sync.WaitGroup
}

func NewPool(opts Options) (*Pool, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}

	jobCounter, err := opts.Meter.Int64Counter("webapi.worker.jobs",
		metric.WithDescription("Number of background jobs by outcome"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, fmt.Errorf("worker: creating job counter: %w", err)
	}
	panicCounter, err := opts.Meter.Int64Counter("webapi.worker.panics",
		metric.WithDescription("Number of background jobs that panicked"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, fmt.Errorf("worker: creating panic counter: %w", err)
	}

	return &Pool{
		queue:        NewRingBuffer[Job](opts.QueueSize),
		wake:         make(chan struct{}, opts.Workers),
		done:         make(chan struct{}),
		workers:      opts.Workers,
		logger:       opts.Logger.With("component", "worker"),
		jobCounter:   jobCounter,
		panicCounter: panicCounter,
	}, nil
}

// Start launches the worker goroutines. Calling Start again is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.work()
		}
		p.logger.Debug("worker pool started", "workers", p.workers, "queue", p.queue.Cap())
	})
}

// Submit queues job without blocking. It returns ErrFull when the queue is
// saturated and ErrStopped once Stop has been called.
func (p *Pool) Submit(job Job) error {
	if p.stopped.Load() {
		return ErrStopped
	}
	if err := p.queue.Enqueue(job); err != nil {
		p.jobCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		return err
	}

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stop stops accepting jobs, lets the workers drain the queue and waits for
// them to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.done)
	})
	p.wg.Wait()
}

// Panics returns the number of jobs that panicked since the pool was created.
func (p *Pool) Panics() int64 {
	return p.panics.Load()
}

func (p *Pool) work() {
	defer p.wg.Done()

	for {
		if job, err := p.queue.Dequeue(); err == nil {
			p.run(job)
			continue
		}

		select {
		case <-p.wake:
		case <-p.done:
			for {
				job, err := p.queue.Dequeue()
				if err != nil {
					return
				}
				p.run(job)
			}
		}
	}
}

func (p *Pool) run(job Job) {
	outcome := "completed"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panicked"
			p.panics.Add(1)
			p.panicCounter.Add(context.Background(), 1)
			p.logger.Error("background job panicked", "panic", r)
		}
		p.jobCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	job()
}
