package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guillecro/leyesabiertas-core/pkg/logger"
	"github.com/guillecro/leyesabiertas-core/pkg/metrics"
)

// Event types consumed by the external notification dispatcher.
const (
	EventCommentNew          = "comment-new"
	EventCommentContribution = "comment-contribution"
	EventCommentResolved     = "comment-resolved"
	EventCommentLiked        = "comment-liked"
	EventDocumentCloses      = "document-closes"
)

// Event is the typed payload posted to the dispatcher. No response body is
// consumed; delivery is best-effort.
type Event struct {
	Type        string     `json:"type"`
	CommentID   string     `json:"commentId,omitempty"`
	DocumentID  string     `json:"documentId,omitempty"`
	ClosingDate *time.Time `json:"closingDate,omitempty"`
}

// Sink delivers a single event.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// FuncSink adapts a function to the Sink interface.
type FuncSink func(ctx context.Context, ev Event) error

func (f FuncSink) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

// HTTPSink posts events as JSON to the external notifier service.
type HTTPSink struct {
	url    string
	client *http.Client
}

func NewHTTPSink(url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSink) Deliver(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}
	return nil
}

// ScheduleStore remembers the latest scheduled closing date per document so
// a superseded closes-at event is never delivered (last write wins).
type ScheduleStore interface {
	SetClosingDate(ctx context.Context, documentID string, t time.Time) error
	GetClosingDate(ctx context.Context, documentID string) (time.Time, bool)
}

// MemoryScheduleStore is the in-process fallback schedule store.
type MemoryScheduleStore struct {
	mu    sync.RWMutex
	dates map[string]time.Time
}

func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{dates: make(map[string]time.Time)}
}

func (s *MemoryScheduleStore) SetClosingDate(ctx context.Context, documentID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates[documentID] = t
	return nil
}

func (s *MemoryScheduleStore) GetClosingDate(ctx context.Context, documentID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.dates[documentID]
	return t, ok
}

// RedisScheduleStore keeps the schedule in Redis so multiple instances agree
// on the latest closing date.
type RedisScheduleStore struct {
	client *redis.Client
	prefix string
}

func NewRedisScheduleStore(client *redis.Client, prefix string) *RedisScheduleStore {
	return &RedisScheduleStore{client: client, prefix: prefix}
}

func (s *RedisScheduleStore) SetClosingDate(ctx context.Context, documentID string, t time.Time) error {
	return s.client.Set(ctx, s.prefix+documentID, t.UTC().Format(time.RFC3339Nano), 0).Err()
}

func (s *RedisScheduleStore) GetClosingDate(ctx context.Context, documentID string) (time.Time, bool) {
	v, err := s.client.Get(ctx, s.prefix+documentID).Result()
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Dispatcher queues events on a buffered channel drained by a single worker.
// Delivery failures are logged and counted, never surfaced to callers. A nil
// Dispatcher is a valid no-op.
type Dispatcher struct {
	queue     chan Event
	sink      Sink
	schedule  ScheduleStore
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewDispatcher starts the worker goroutine. buffer bounds the queue; a full
// queue drops events (best-effort contract).
func NewDispatcher(sink Sink, schedule ScheduleStore, buffer int) *Dispatcher {
	if schedule == nil {
		schedule = NewMemoryScheduleStore()
	}
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		queue:    make(chan Event, buffer),
		sink:     sink,
		schedule: schedule,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.queue {
		if ev.Type == EventDocumentCloses && ev.ClosingDate != nil {
			// drop a closes event whose date was superseded while queued
			if latest, ok := d.schedule.GetClosingDate(context.Background(), ev.DocumentID); ok && !latest.Equal(*ev.ClosingDate) {
				metrics.NotificationsDropped.WithLabelValues(ev.Type).Inc()
				continue
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := d.sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			metrics.NotificationsFailed.WithLabelValues(ev.Type).Inc()
			logger.Warnf("notification delivery failed (type=%s): %v", ev.Type, err)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(ev.Type).Inc()
	}
}

func (d *Dispatcher) emit(ev Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.NotificationsDropped.WithLabelValues(ev.Type).Inc()
		return
	}
	select {
	case d.queue <- ev:
	default:
		metrics.NotificationsDropped.WithLabelValues(ev.Type).Inc()
		logger.Warnf("notification queue full, dropping event type=%s", ev.Type)
	}
}

func (d *Dispatcher) CommentNew(commentID string) {
	d.emit(Event{Type: EventCommentNew, CommentID: commentID})
}

func (d *Dispatcher) CommentContribution(commentID string) {
	d.emit(Event{Type: EventCommentContribution, CommentID: commentID})
}

func (d *Dispatcher) CommentResolved(commentID string) {
	d.emit(Event{Type: EventCommentResolved, CommentID: commentID})
}

func (d *Dispatcher) CommentLiked(commentID string) {
	d.emit(Event{Type: EventCommentLiked, CommentID: commentID})
}

// DocumentCloses records the latest scheduled closing date and queues the
// event. Re-emitting with a new date supersedes any queued schedule for the
// same document.
func (d *Dispatcher) DocumentCloses(documentID string, closingDate time.Time) {
	if d == nil {
		return
	}
	if err := d.schedule.SetClosingDate(context.Background(), documentID, closingDate); err != nil {
		logger.Warnf("failed to record closing date for %s: %v", documentID, err)
	}
	t := closingDate
	d.emit(Event{Type: EventDocumentCloses, DocumentID: documentID, ClosingDate: &t})
}

// Close stops accepting events and waits for the worker to drain the queue.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
		<-d.done
	})
}
