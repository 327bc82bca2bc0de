package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/surveyforge/surveyforge/pipeline"
	"github.com/surveyforge/surveyforge/result"
	"github.com/surveyforge/surveyforge/search"
	"github.com/surveyforge/surveyforge/task"
)

// memRegistry is an in-memory task.Registry double, mirroring the one in
// the task package's own tests.
type memRegistry struct {
	mu      sync.Mutex
	records map[string]*task.Record
}

func newMemRegistry() *memRegistry {
	return &memRegistry{records: make(map[string]*task.Record)}
}

func (m *memRegistry) Create(ctx context.Context, id string, params map[string]any, topic string, ttl time.Duration) (*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return nil, task.ErrTaskExists
	}
	now := time.Now().UTC()
	rec := &task.Record{ID: id, Status: task.StatusPending, Params: params, Topic: topic, CreatedAt: now, UpdatedAt: now}
	m.records[id] = rec
	cp := *rec
	return &cp, nil
}

func (m *memRegistry) Get(ctx context.Context, id string) (*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRegistry) UpdateStatus(ctx context.Context, id string, status task.Status, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return task.ErrTaskNotFound
	}
	if !task.CanTransition(rec.Status, status) {
		return task.ErrInvalidTransition
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
		return task.ErrTaskNotFound
	}
	if field == "result_key" {
		rec.ResultKey = value.(string)
	}
	return nil
}

func (m *memRegistry) List(ctx context.Context, status task.Status, limit int) ([]*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*task.Record
	for _, rec := range m.records {
		if status != "" && rec.Status != status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memRegistry) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return task.ErrTaskNotFound
	}
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
	mu      sync.Mutex
	recs    map[string]result.Record
	healthy bool
}

func newMemResultStore() *memResultStore {
	return &memResultStore{recs: make(map[string]result.Record), healthy: true}
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

func (s *memResultStore) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		return result.ErrNotFound
	}
	return nil
}

func newTestServer(t *testing.T) (*Server, *memRegistry, *memResultStore) {
	t.Helper()
	registry := newMemRegistry()
	results := newMemResultStore()
	node := pipeline.NewNode("sink", func(ctx context.Context, in any) (any, error) {
		return nil, nil
	}, pipeline.WithNoOutput(), pipeline.WithQueueCapacity(4))
	pl := pipeline.NewSequential(node)
	mgr := task.NewManager(registry, results, search.NullProcessor{}, pl, nil,
		task.WithCheckInterval(5*time.Millisecond), task.WithTimeout(time.Second))
	srv := NewServer("127.0.0.1:0", mgr, results, pl, nil)
	return srv, registry, results
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rr.Body.String())
	}
}

func TestHandleSubmitReturnsTaskID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	body := `{"topic":"distributed consensus"}`
	req := httptest.NewRequest(http.MethodPost, "/api/task/submit", strings.NewReader(body))
	rr := httptest.NewRecorder()
	srv.handleSubmit(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp submitResponse
	decodeBody(t, rr, &resp)
	if !resp.Success || resp.TaskID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.OriginalTopic != "distributed consensus" {
		t.Fatalf("expected original_topic echoed back, got %q", resp.OriginalTopic)
	}
}

func TestHandleSubmitRejectsInvalidJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/task/submit", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	srv.handleSubmit(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleGetTaskNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/task/missing", nil)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()
	srv.handleGetTask(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleGetTaskReturnsRecord(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	rec, err := registry.Create(context.Background(), "task-1", map[string]any{}, "topic", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/task/"+rec.ID, nil)
	req.SetPathValue("id", rec.ID)
	rr := httptest.NewRecorder()
	srv.handleGetTask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got task.Record
	decodeBody(t, rr, &got)
	if got.ID != rec.ID || got.Status != task.StatusPending {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestHandleDeleteTask(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	_, _ = registry.Create(context.Background(), "task-del", map[string]any{}, "topic", 0)

	req := httptest.NewRequest(http.MethodDelete, "/api/task/task-del", nil)
	req.SetPathValue("id", "task-del")
	rr := httptest.NewRecorder()
	srv.handleDeleteTask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if _, err := registry.Get(context.Background(), "task-del"); err == nil {
		t.Fatalf("expected task-del to be gone")
	}
}

func TestHandleListTasksFiltersByStatus(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	_, _ = registry.Create(context.Background(), "a", map[string]any{}, "t", 0)
	_, _ = registry.Create(context.Background(), "b", map[string]any{}, "t", 0)
	_ = registry.UpdateStatus(context.Background(), "b", task.StatusPreparing, "")

	req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=preparing", nil)
	rr := httptest.NewRecorder()
	srv.handleListTasks(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Tasks []task.Record `json:"tasks"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "b" {
		t.Fatalf("expected only task b, got %+v", resp.Tasks)
	}
}

func TestHandleListTasksRejectsUnknownStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tasks?status=bogus", nil)
	rr := httptest.NewRecorder()
	srv.handleListTasks(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleGlobalPipelineStatusReportsNodes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/global_pipeline_status", nil)
	rr := httptest.NewRecorder()
	srv.handleGlobalPipelineStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Nodes []nodeStatus `json:"nodes"`
	}
	decodeBody(t, rr, &resp)
	if len(resp.Nodes) != 1 || resp.Nodes[0].Name != "sink" {
		t.Fatalf("expected one node named sink, got %+v", resp.Nodes)
	}
}

func TestHandleTaskPipelineStatusRejectsTerminalTask(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	_, _ = registry.Create(context.Background(), "done", map[string]any{}, "t", 0)
	_ = registry.UpdateStatus(context.Background(), "done", task.StatusFailed, "boom")

	req := httptest.NewRequest(http.MethodGet, "/api/task/done/pipeline_status", nil)
	req.SetPathValue("id", "done")
	rr := httptest.NewRecorder()
	srv.handleTaskPipelineStatus(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for terminal task, got %d", rr.Code)
	}
}

func TestHandleOutputReturnsStoredResult(t *testing.T) {
	srv, registry, results := newTestServer(t)
	_, _ = registry.Create(context.Background(), "done-2", map[string]any{}, "t", 0)
	_ = registry.UpdateStatus(context.Background(), "done-2", task.StatusPreparing, "")
	_ = registry.UpdateStatus(context.Background(), "done-2", task.StatusProcessing, "")
	_ = registry.UpdateStatus(context.Background(), "done-2", task.StatusCompleted, "")
	_ = results.Upsert(context.Background(), result.Record{TaskID: "done-2", Title: "survey"})

	req := httptest.NewRequest(http.MethodGet, "/api/output/done-2", nil)
	req.SetPathValue("id", "done-2")
	rr := httptest.NewRecorder()
	srv.handleOutput(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleOutputRejectsIncompleteTask(t *testing.T) {
	srv, registry, _ := newTestServer(t)
	_, _ = registry.Create(context.Background(), "still-running", map[string]any{}, "t", 0)

	req := httptest.NewRequest(http.MethodGet, "/api/output/still-running", nil)
	req.SetPathValue("id", "still-running")
	rr := httptest.NewRecorder()
	srv.handleOutput(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleHealthReportsUnhealthyResultStore(t *testing.T) {
	srv, _, results := newTestServer(t)
	results.healthy = false

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	srv.handleHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp map[string]any
	decodeBody(t, rr, &resp)
	if resp["success"] != false {
		t.Fatalf("expected success=false, got %+v", resp)
	}
}

func TestHandleHealthReportsHealthy(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	srv.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
