package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/svcportal/internal/lifecycle"
	"github.com/olegiv/svcportal/internal/model"
)

// Dispatcher consumes lifecycle events and queues one delivery per endpoint.
type Dispatcher struct {
	endpoints      []string
	secret         string
	logger         *slog.Logger
	client         *http.Client
	initialBackoff time.Duration
	queue          chan *QueuedDelivery
	workers        int
	wg             sync.WaitGroup
	done           chan struct{}
	mu             sync.RWMutex
	running        bool
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID string
	Event      string
	Payload    []byte
	URL        string
	Attempts   int
}

// Config holds dispatcher configuration.
type Config struct {
	Endpoints []string
	Secret    string
	Workers   int // Number of concurrent delivery workers
	QueueSize int
	// InitialBackoff is the delay before the first retry. It doubles per attempt.
	InitialBackoff time.Duration
	Client         *http.Client
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		InitialBackoff: InitialBackoff,
	}
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.Client == nil {
		cfg.Client = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		endpoints:      cfg.Endpoints,
		secret:         cfg.Secret,
		logger:         logger,
		client:         cfg.Client,
		initialBackoff: cfg.InitialBackoff,
		queue:          make(chan *QueuedDelivery, cfg.QueueSize),
		workers:        cfg.Workers,
		done:           make(chan struct{}),
	}
}

// Start starts the delivery workers and a consumer of sub.
func (d *Dispatcher) Start(ctx context.Context, sub *lifecycle.Subscription) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.workers, "endpoints", len(d.endpoints))

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.wg.Add(1)
	go d.consume(ctx, sub)
}

// Stop stops the dispatcher and waits for workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) consume(ctx context.Context, sub *lifecycle.Subscription) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			d.Dispatch(NewEvent(ev))
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch queues event for every configured endpoint. A full queue drops the
// delivery with a warning.
func (d *Dispatcher) Dispatch(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal webhook payload", "error", err, "event_type", event.Type)
		return
	}

	for _, url := range d.endpoints {
		qd := &QueuedDelivery{
			DeliveryID: event.Data.ID,
			Event:      event.Type,
			Payload:    payload,
			URL:        url,
		}
		select {
		case d.queue <- qd:
			d.logger.Debug("delivery queued", "delivery_id", qd.DeliveryID, "url", url)
		default:
			d.logger.Warn("webhook delivery queue full, delivery dropped",
				"delivery_id", qd.DeliveryID, "url", url, "category", model.EventCategoryAccess)
		}
	}
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}
