package task

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/surveyforge/surveyforge/result"
	"github.com/surveyforge/surveyforge/search"
)

// PipelineSubmitter is the pipeline head from the task manager's point of
// view: whatever accepts a payload and queues it for processing.
// *pipeline.Sequential and *pipeline.Node both satisfy this already.
type PipelineSubmitter interface {
	Put(ctx context.Context, value any) error
}

// Manager drives submitted jobs through the task state machine: a
// submission path that creates PENDING, a per-task preparation goroutine
// that advances through PREPARING/SEARCHING/SEARCHING_WEB/CRAWLING (or
// straight to PROCESSING for a pre-supplied input file), and a watcher
// goroutine that polls the result store for completion or expiry.
type Manager struct {
	registry Registry
	results  result.Store
	search   search.Processor
	pipeline PipelineSubmitter
	opts     Options
	log      logrus.FieldLogger
}

// NewManager wires a Manager from its four collaborators. log may be nil,
// in which case logrus.StandardLogger() is used.
func NewManager(registry Registry, results result.Store, proc search.Processor, pipeline PipelineSubmitter, log logrus.FieldLogger, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		registry: registry,
		results:  results,
		search:   proc,
		pipeline: pipeline,
		opts:     o,
		log:      log,
	}
}

// Submit generates a task id, derives a unique expected result key, creates
// the PENDING record, and spawns the preparation and watcher goroutines. It
// returns the new task id.
func (m *Manager) Submit(ctx context.Context, params map[string]any) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	topic, _ := params["topic"].(string)
	expectedResultKey := fmt.Sprintf("%s_%s_%d", topic, id, now.Unix())

	enriched := make(map[string]any, len(params)+2)
	for k, v := range params {
		enriched[k] = v
	}
	enriched["original_topic"] = topic
	enriched["expected_result_key"] = expectedResultKey

	rec, err := m.registry.Create(ctx, id, enriched, topic, m.opts.ttl)
	if err != nil {
		return "", fmt.Errorf("task: submit: %w", err)
	}
	if err := m.registry.UpdateField(ctx, id, "result_key", expectedResultKey); err != nil {
		m.log.WithError(err).WithField("task_id", id).Warn("submit: set result key")
	}

	m.log.WithFields(logrus.Fields{"task_id": id, "topic": topic}).Info("task submitted")

	go m.prepare(context.Background(), id, params)
	go m.watch(context.Background(), id, rec.CreatedAt)

	return id, nil
}

// prepare runs the per-task preparation sequence: resolve a payload from
// either a topic (via the search processor) or an input file, then hand it
// to the pipeline head. Any failure along the way sets FAILED and returns;
// it never leaves the task in a non-terminal state.
func (m *Manager) prepare(ctx context.Context, id string, params map[string]any) {
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		m.log.WithField("task_id", id).Error("prepare: " + msg)
		if err := m.registry.UpdateStatus(ctx, id, StatusFailed, msg); err != nil {
			m.log.WithError(err).WithField("task_id", id).Error("prepare: mark failed")
		}
	}

	if err := m.registry.UpdateStatus(ctx, id, StatusPreparing, ""); err != nil {
		m.log.WithError(err).WithField("task_id", id).Error("prepare: mark preparing")
		return
	}

	topic, hasTopic := params["topic"].(string)
	inputFile, hasInputFile := params["input_file"].(string)

	var payload []byte
	switch {
	case hasTopic && topic != "":
		for _, s := range []Status{StatusSearching, StatusSearchingWeb, StatusCrawling} {
			if err := m.registry.UpdateStatus(ctx, id, s, ""); err != nil {
				fail("advance to %s: %v", s, err)
				return
			}
		}
		out, err := m.search.Process(ctx, topic)
		if err != nil {
			fail("search processor: %v", err)
			return
		}
		payload = out
	case hasInputFile && inputFile != "":
		out, err := os.ReadFile(inputFile)
		if err != nil {
			fail("read input file: %v", err)
			return
		}
		payload = out
	default:
		fail("missing topic or input_file")
		return
	}

	if len(payload) == 0 {
		fail("empty payload")
		return
	}

	if err := m.registry.UpdateStatus(ctx, id, StatusProcessing, ""); err != nil {
		fail("advance to processing: %v", err)
		return
	}

	if err := m.pipeline.Put(ctx, payload); err != nil {
		fail("submit to pipeline: %v", err)
		return
	}
}

// watch polls the result store for id's completion. It runs independently
// of preparation so that a hung preparation goroutine still eventually
// times out: elapsed time is measured from createdAt, not from entry into
// PROCESSING. It stops after the first terminal transition it makes, or
// immediately if id is already terminal by the time it observes it.
func (m *Manager) watch(ctx context.Context, id string, createdAt time.Time) {
	deadline := createdAt.Add(m.opts.timeout)
	ticker := time.NewTicker(m.opts.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec, err := m.registry.Get(ctx, id)
			if err != nil {
				m.log.WithError(err).WithField("task_id", id).Warn("watch: get task")
				continue
			}
			if rec.Status.IsTerminal() {
				return
			}

			done, err := m.results.Exists(ctx, id)
			if err != nil {
				m.log.WithError(err).WithField("task_id", id).Warn("watch: check result store")
			} else if done {
				if err := m.registry.UpdateStatus(ctx, id, StatusCompleted, ""); err != nil {
					m.log.WithError(err).WithField("task_id", id).Error("watch: mark completed")
				}
				return
			}

			if time.Now().UTC().After(deadline) {
				if err := m.registry.UpdateStatus(ctx, id, StatusTimeout, ""); err != nil {
					m.log.WithError(err).WithField("task_id", id).Error("watch: mark timeout")
				}
				return
			}
		}
	}
}

// Get returns the current record for id.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	return m.registry.Get(ctx, id)
}

// List returns up to limit records, optionally filtered by status.
func (m *Manager) List(ctx context.Context, status Status, limit int) ([]*Record, error) {
	return m.registry.List(ctx, status, limit)
}

// Delete removes id's record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.registry.Delete(ctx, id)
}

// Health reports overall manager health: registry reachability and the
// count of tasks not yet in a terminal state.
type Health struct {
	RegistryHealthy bool
	ActiveTasks     int
}

// HealthCheck reports the registry's reachability and current active task
// count, which the GET /api/health handler reports.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	h := Health{}
	h.RegistryHealthy = m.registry.HealthCheck(ctx) == nil
	if count, err := m.registry.ActiveCount(ctx); err == nil {
		h.ActiveTasks = count
	}
	return h
}
