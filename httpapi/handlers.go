package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/surveyforge/surveyforge/task"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}

type submitResponse struct {
	Success           bool   `json:"success"`
	TaskID            string `json:"task_id"`
	Message           string `json:"message"`
	OutputFile        string `json:"output_file,omitempty"`
	OriginalTopic     string `json:"original_topic,omitempty"`
	UniqueSurveyTitle string `json:"unique_survey_title,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	id, err := s.manager.Submit(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusOK, submitResponse{Success: true, TaskID: id, Message: "task accepted"})
		return
	}

	outputFile, _ := rec.Params["output_file"].(string)
	writeJSON(w, http.StatusOK, submitResponse{
		Success:           true,
		TaskID:            id,
		Message:           "task accepted",
		OutputFile:        outputFile,
		OriginalTopic:     rec.Topic,
		UniqueSurveyTitle: rec.ResultKey,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	statusParam := r.URL.Query().Get("status")
	status := task.Status(statusParam)
	if statusParam != "" && !isKnownStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status: "+statusParam)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := parsePositiveInt(l); err == nil {
			limit = n
		}
	}

	recs, err := s.manager.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": recs})
}

func isKnownStatus(s task.Status) bool {
	switch s {
	case task.StatusPending, task.StatusPreparing, task.StatusSearching, task.StatusSearchingWeb,
		task.StatusCrawling, task.StatusProcessing, task.StatusCompleted, task.StatusFailed, task.StatusTimeout:
		return true
	default:
		return false
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errNotANumber
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return 0, errNotANumber
	}
	return n, nil
}

type nodeStatus struct {
	Name           string `json:"name"`
	IsRunning      bool   `json:"is_running"`
	QueueSize      int    `json:"queue_size"`
	MaxQueueSize   int    `json:"max_queue_size"`
	ExecutingCount int    `json:"executing_count"`
	WorkerCount    int    `json:"worker_count"`
}

func (s *Server) nodeStatuses() []nodeStatus {
	if s.pipeline == nil {
		return nil
	}
	nodes := s.pipeline.Nodes()
	out := make([]nodeStatus, len(nodes))
	for i, n := range nodes {
		out[i] = nodeStatus{
			Name:           n.Name(),
			IsRunning:      n.IsRunning(),
			QueueSize:      n.QueueSize(),
			MaxQueueSize:   n.QueueCapacity(),
			ExecutingCount: n.ExecutingCount(),
			WorkerCount:    n.Workers(),
		}
	}
	return out
}

func (s *Server) handleGlobalPipelineStatus(w http.ResponseWriter, r *http.Request) {
	running := s.pipeline != nil && s.pipeline.Head().IsRunning()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"running": running,
		"nodes":   s.nodeStatuses(),
	})
}

func (s *Server) handleTaskPipelineStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if rec.Status.IsTerminal() {
		writeError(w, http.StatusBadRequest, "task is no longer active: "+string(rec.Status))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task_id": id,
		"nodes":   s.nodeStatuses(),
	})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.manager.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if rec.Status != task.StatusCompleted {
		writeError(w, http.StatusBadRequest, "task is not complete: "+string(rec.Status))
		return
	}

	out, err := s.results.Get(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": out})
		return
	}
	if outputFile, ok := rec.Params["output_file"].(string); ok && outputFile != "" {
		http.ServeFile(w, r, outputFile)
		return
	}
	writeError(w, http.StatusNotFound, "no result available for task "+id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.manager.HealthCheck(r.Context())

	resultsHealthy := true
	if s.results != nil {
		resultsHealthy = s.results.HealthCheck(r.Context()) == nil
	}

	status := http.StatusOK
	if !health.RegistryHealthy || !resultsHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"success":          health.RegistryHealthy && resultsHealthy,
		"registry_healthy": health.RegistryHealthy,
		"results_healthy":  resultsHealthy,
		"active_tasks":     health.ActiveTasks,
	})
}
