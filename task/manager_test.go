package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/surveyforge/surveyforge/result"
	"github.com/surveyforge/surveyforge/search"
)

// memRegistry is an in-memory Registry double for manager tests.
type memRegistry struct {
	mu      sync.Mutex
	records map[string]*Record
}

func newMemRegistry() *memRegistry {
	return &memRegistry{records: make(map[string]*Record)}
}

func (m *memRegistry) Create(ctx context.Context, id string, params map[string]any, topic string, ttl time.Duration) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return nil, ErrTaskExists
	}
	now := time.Now().UTC()
	rec := &Record{ID: id, Status: StatusPending, Params: params, Topic: topic, CreatedAt: now, UpdatedAt: now}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl)
	}
	m.records[id] = rec
	cp := *rec
	return &cp, nil
}

func (m *memRegistry) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRegistry) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	if !CanTransition(rec.Status, status) {
		return ErrInvalidTransition
	}
	rec.Status = status
	rec.ErrorMessage = errMsg
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRegistry) UpdateField(ctx context.Context, id string, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTaskNotFound
	}
	if field == "result_key" {
		rec.ResultKey = value.(string)
	}
	return nil
}

func (m *memRegistry) List(ctx context.Context, status Status, limit int) ([]*Record, error) {
	return nil, nil
}

func (m *memRegistry) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memRegistry) ActiveCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if !rec.Status.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (m *memRegistry) CleanupExpired(ctx context.Context) (int, error) { return 0, nil }

func (m *memRegistry) HealthCheck(ctx context.Context) error { return nil }

// memResultStore is an in-memory result.Store double.
type memResultStore struct {
	mu   sync.Mutex
	recs map[string]result.Record
}

func newMemResultStore() *memResultStore {
	return &memResultStore{recs: make(map[string]result.Record)}
}

func (s *memResultStore) Upsert(ctx context.Context, rec result.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.TaskID] = rec
	return nil
}

func (s *memResultStore) Get(ctx context.Context, taskID string) (result.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[taskID]
	if !ok {
		return result.Record{}, result.ErrNotFound
	}
	return rec, nil
}

func (s *memResultStore) Exists(ctx context.Context, taskID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[taskID]
	return ok, nil
}

func (s *memResultStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, taskID)
	return nil
}

func (s *memResultStore) HealthCheck(ctx context.Context) error { return nil }

// stubProcessor returns a fixed payload or a fixed error.
type stubProcessor struct {
	payload []byte
	err     error
}

func (p stubProcessor) Process(ctx context.Context, topic string) ([]byte, error) {
	return p.payload, p.err
}

// recordingPipeline captures every payload handed to it.
type recordingPipeline struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (p *recordingPipeline) Put(ctx context.Context, value any) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, value.([]byte))
	return nil
}

func waitForStatus(t *testing.T, registry *memRegistry, id string, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, err := registry.Get(context.Background(), id)
		if err == nil && rec.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := registry.Get(context.Background(), id)
	t.Fatalf("status never reached %s, last seen %v", want, rec)
}

func TestManagerSubmitWithTopicReachesProcessing(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	proc := stubProcessor{payload: []byte("crawled content")}
	pipe := &recordingPipeline{}
	mgr := NewManager(registry, results, proc, pipe, nil, WithCheckInterval(10*time.Millisecond), WithTimeout(time.Second))

	id, err := mgr.Submit(context.Background(), map[string]any{"topic": "distributed consensus"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForStatus(t, registry, id, StatusProcessing, time.Second)

	pipe.mu.Lock()
	defer pipe.mu.Unlock()
	if len(pipe.payloads) != 1 || string(pipe.payloads[0]) != "crawled content" {
		t.Fatalf("expected payload submitted to pipeline, got %v", pipe.payloads)
	}
}

func TestManagerSubmitMissingTopicAndInputFileFails(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	mgr := NewManager(registry, results, search.NullProcessor{}, &recordingPipeline{}, nil)

	id, err := mgr.Submit(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, registry, id, StatusFailed, time.Second)
}

func TestManagerSearchProcessorFailureMarksFailed(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	proc := stubProcessor{err: errors.New("crawl aborted: robots.txt disallow")}
	mgr := NewManager(registry, results, proc, &recordingPipeline{}, nil)

	id, err := mgr.Submit(context.Background(), map[string]any{"topic": "anything"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, registry, id, StatusFailed, time.Second)
}

func TestManagerWatcherTransitionsToCompletedOnResult(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	proc := stubProcessor{payload: []byte("x")}
	mgr := NewManager(registry, results, proc, &recordingPipeline{}, nil,
		WithCheckInterval(10*time.Millisecond), WithTimeout(time.Second))

	id, err := mgr.Submit(context.Background(), map[string]any{"topic": "t"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, registry, id, StatusProcessing, time.Second)

	_ = results.Upsert(context.Background(), result.Record{TaskID: id, Status: "completed"})

	waitForStatus(t, registry, id, StatusCompleted, time.Second)
}

func TestManagerWatcherTimesOutWithoutResult(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	proc := stubProcessor{payload: []byte("x")}
	mgr := NewManager(registry, results, proc, &recordingPipeline{}, nil,
		WithCheckInterval(10*time.Millisecond), WithTimeout(50*time.Millisecond))

	id, err := mgr.Submit(context.Background(), map[string]any{"topic": "t"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitForStatus(t, registry, id, StatusTimeout, time.Second)
}

func TestManagerHealthCheckReportsActiveCount(t *testing.T) {
	registry := newMemRegistry()
	results := newMemResultStore()
	mgr := NewManager(registry, results, search.NullProcessor{}, &recordingPipeline{}, nil)

	if _, err := mgr.Submit(context.Background(), map[string]any{"topic": "t"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	h := mgr.HealthCheck(context.Background())
	if !h.RegistryHealthy {
		t.Fatalf("expected registry healthy")
	}
	if h.ActiveTasks < 1 {
		t.Fatalf("expected at least one active task, got %d", h.ActiveTasks)
	}
}
