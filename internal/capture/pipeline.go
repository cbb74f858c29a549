// Package capture runs the background half of request capture: every queued
// job is geolocated and appended to the history store by a pool of workers.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/cankoe/misuse-recorder/internal/metrics"
	"github.com/cankoe/misuse-recorder/internal/models"

	"github.com/rs/zerolog/log"
)

// Job carries what the response path knows about a request.
type Job struct {
	URL        string
	Method     string
	ClientIP   string
	ReceivedAt time.Time
}

// GeoResolver never fails; an unresolvable IP yields "".
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) string
}

// Appender persists a completed record.
type Appender interface {
	Append(ctx context.Context, rec *models.CaptureRecord) error
}

type Options struct {
	Workers      int
	QueueSize    int
	StoreTimeout time.Duration
}

// Pipeline is a bounded fire-and-forget queue in front of a worker pool.
type Pipeline struct {
	resolver GeoResolver
	store    Appender
	opts     Options

	mu      sync.RWMutex
	jobs    chan Job
	stopped bool
	wg      sync.WaitGroup
}

func NewPipeline(resolver GeoResolver, store Appender, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Pipeline{
		resolver: resolver,
		store:    store,
		opts:     opts,
		jobs:     make(chan Job, opts.QueueSize),
	}
}

// Submit enqueues job without blocking. It returns false when the job was
// dropped because the queue is full or the pipeline is stopping.
func (p *Pipeline) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		metrics.Captures.WithLabelValues("dropped").Inc()
		log.Warn().Str("url", job.URL).Msg("Capture pipeline stopped, dropping job")
		return false
	}

	// Counted before the send so a worker's Dec never runs first.
	metrics.QueueDepth.Inc()
	select {
	case p.jobs <- job:
		metrics.Captures.WithLabelValues("queued").Inc()
		return true
	default:
		metrics.QueueDepth.Dec()
		metrics.Captures.WithLabelValues("dropped").Inc()
		log.Warn().Str("url", job.URL).Str("client_ip", job.ClientIP).Int("queue_size", p.opts.QueueSize).
			Msg("Capture queue full, dropping job")
		return false
	}
}

// Start spawns the workers. They exit once Stop has closed the queue and it
// is drained.
func (p *Pipeline) Start(ctx context.Context) {
	log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("Spawning capture workers")
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i+1)
	}
}

// Stop refuses new jobs and waits until queued ones are processed or ctx ends.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Capture workers drained")
		return nil
	case <-ctx.Done():
		log.Warn().Int("pending", len(p.jobs)).Msg("Capture workers did not drain before shutdown deadline")
		return ctx.Err()
	}
}

func (p *Pipeline) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for job := range p.jobs {
		metrics.QueueDepth.Dec()
		p.process(ctx, workerID, job)
	}
	log.Debug().Int("worker_id", workerID).Msg("Capture worker stopped")
}

func (p *Pipeline) process(ctx context.Context, workerID int, job Job) {
	// Queued jobs finish even while shutting down; geo and store calls carry
	// their own timeouts.
	ctx = context.WithoutCancel(ctx)
	geo := p.resolver.Resolve(ctx, job.ClientIP)

	rec := &models.CaptureRecord{
		Method:    job.Method,
		URL:       job.URL,
		ClientIP:  job.ClientIP,
		ClientGeo: geo,
		CreatedAt: job.ReceivedAt.UTC(),
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.opts.StoreTimeout)
	defer cancel()

	if err := p.store.Append(storeCtx, rec); err != nil {
		metrics.Captures.WithLabelValues("failed").Inc()
		log.Error().Err(err).Int("worker_id", workerID).Str("method", job.Method).Str("url", job.URL).
			Str("client_ip", job.ClientIP).Msg("Failed to persist capture record")
		return
	}

	metrics.Captures.WithLabelValues("stored").Inc()
	log.Debug().Int("worker_id", workerID).Int64("id", rec.ID).Str("method", rec.Method).
		Str("url", rec.URL).Str("client_geo", rec.ClientGeo).Msg("Capture record stored")
}
