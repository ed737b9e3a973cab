package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"web2json/internal/config"
	"web2json/internal/errs"
	"web2json/internal/models"
	"web2json/internal/utils"
)

var (
	ErrTaskNotFound = errors.New("Task not found")
	ErrServerBusy   = errors.New("server busy, too many active tasks")
)

type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

type task struct {
	id       string
	req      models.GenerateRequest
	status   models.TaskStatus
	phase    models.Phase
	progress float64
	message  string
	details  map[string]any
	err      string
	cancel   chan struct{}
	output   *output
	created  time.Time
}

func (t *task) terminal() bool {
	switch t.status {
	case models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
		return true
	}
	return false
}

// output is everything a completed task can serve.
type output struct {
	fields    []models.XPathField
	results   []map[string]any
	artifacts map[models.ArtifactKind]Download
}

type Download struct {
	ContentType string
	FileName    string
	Data        []byte
}

type Service struct {
	tasks         map[string]*task
	activeTasks   map[string]struct{}
	completedTask map[string]time.Time
	apiConfig     models.APIConfig
	fetcher       Fetcher
	cfg           *config.Config
	log           *slog.Logger
	mu            sync.Mutex
	wg            sync.WaitGroup
	now           func() time.Time
}

func NewService(cfg *config.Config, fetcher Fetcher, log *slog.Logger) *Service {
	return &Service{
		cfg:           cfg,
		log:           log,
		fetcher:       fetcher,
		tasks:         make(map[string]*task),
		activeTasks:   make(map[string]struct{}),
		completedTask: make(map[string]time.Time),
		now:           time.Now,
		apiConfig: models.APIConfig{
			IterationRounds: cfg.Conditions.IterationRounds,
		},
	}
}

func validateGenerate(req models.GenerateRequest) error {
	switch req.SchemaMode {
	case models.SchemaAuto, models.SchemaPredefined:
	default:
		return &errs.ValidationError{Field: "schema_mode", Err: fmt.Errorf("unknown schema mode %q", req.SchemaMode)}
	}

	switch req.OutputMode {
	case "", models.OutputStructuredData, models.OutputXPathOnly:
	default:
		return &errs.ValidationError{Field: "output_mode", Err: fmt.Errorf("unknown output mode %q", req.OutputMode)}
	}

	if req.SchemaMode == models.SchemaPredefined && len(req.Fields) == 0 {
		return &errs.ValidationError{Field: "fields", Err: fmt.Errorf("fields are required when schema_mode is 'predefined'")}
	}

	if len(req.HTMLContents) == 0 && len(req.URLs) == 0 {
		return &errs.ValidationError{Field: "html_contents", Err: fmt.Errorf("at least one HTML source is required (html_contents or urls)")}
	}

	for _, u := range req.URLs {
		if err := utils.CheckURL(u); err != nil {
			return &errs.ValidationError{Field: "urls", Err: errors.Wrap(err, u)}
		}
	}

	for i, f := range req.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return &errs.ValidationError{Field: fmt.Sprintf("fields[%d].name", i), Err: fmt.Errorf("field name is required")}
		}
		if f.FieldType != "" && !f.FieldType.Valid() {
			return &errs.ValidationError{Field: fmt.Sprintf("fields[%d].field_type", i), Err: fmt.Errorf("unknown field type %q", f.FieldType)}
		}
	}

	return nil
}

func (s *Service) CreateTask(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	if err := validateGenerate(req); err != nil {
		s.log.Warn("invalid generate request", slog.String("error", err.Error()))
		return nil, err
	}
	if req.OutputMode == "" {
		req.OutputMode = models.OutputStructuredData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictFinished()

	if len(s.activeTasks) >= s.cfg.Conditions.MaxActiveTasks {
		s.log.Error("Server busy. Too many active tasks", slog.Int("active", len(s.activeTasks)), slog.Int("max", s.cfg.Conditions.MaxActiveTasks))
		return nil, ErrServerBusy
	}

	taskID := uuid.New().String()
	t := &task{
		id:      taskID,
		req:     req,
		status:  models.StatusPending,
		phase:   models.PhasePlanning,
		message: "Task created",
		cancel:  make(chan struct{}),
		created: s.now(),
	}
	s.tasks[taskID] = t
	s.activeTasks[taskID] = struct{}{}

	s.wg.Add(1)
	go s.taskProcessing(t)

	s.log.Info("task created",
		slog.String("taskID", taskID),
		slog.Int("samples", len(req.HTMLContents)+len(req.URLs)),
		slog.String("schemaMode", string(req.SchemaMode)),
	)

	return &models.GenerateResponse{
		Success:        true,
		TaskID:         taskID,
		Message:        "Parser generation task created successfully",
		PollIntervalMs: int(s.cfg.Conditions.PollIntervalHint / time.Millisecond),
	}, nil
}

func (s *Service) GetStatusTask(ctx context.Context, taskID string) (*models.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		s.log.Warn("task not found", slog.String("taskID", taskID))
		return nil, ErrTaskNotFound
	}

	res := &models.StatusResponse{
		TaskID:   t.id,
		Status:   t.status,
		Phase:    t.phase,
		Progress: t.progress,
		Message:  t.message,
		Details:  copyDetails(t.details),
		Error:    t.err,
	}

	if t.status == models.StatusCompleted && t.output != nil {
		res.Result = &models.TaskResult{
			Artifacts: artifactKinds(t.output),
			Files:     len(t.output.results),
			Schema:    utils.Schema(t.output.fields),
		}
	}

	return res, nil
}

func artifactKinds(out *output) []models.ArtifactKind {
	kinds := []models.ArtifactKind{}
	for _, k := range []models.ArtifactKind{models.ArtifactJSONL, models.ArtifactCSV, models.ArtifactZIP, models.ArtifactParser} {
		if _, ok := out.artifacts[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func copyDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// CancelTask stops a pending or running task at its next checkpoint.
// Cancelling a cancelled task succeeds again; finished tasks cannot be
// cancelled.
func (s *Service) CancelTask(ctx context.Context, taskID string) (*models.CancelResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	switch t.status {
	case models.StatusCancelled:
		return &models.CancelResponse{Success: true, Message: "Task already cancelled"}, nil
	case models.StatusCompleted, models.StatusFailed:
		return nil, &errs.StateError{TaskID: taskID, Op: "cancel", State: string(t.status),
			Err: fmt.Errorf("cannot cancel task in '%s' status", t.status)}
	}

	close(t.cancel)
	t.status = models.StatusCancelled
	t.message = "Task cancelled by user"
	s.finish(t)

	s.log.Info("task cancelled", slog.String("taskID", taskID), slog.String("phase", string(t.phase)))

	return &models.CancelResponse{Success: true, Message: "Task cancellation initiated"}, nil
}

func (s *Service) completedOutput(taskID, op string) (*output, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if t.status != models.StatusCompleted {
		return nil, &errs.StateError{TaskID: taskID, Op: op, State: string(t.status),
			Err: fmt.Errorf("cannot %s for task in '%s' status, wait for completion", op, t.status)}
	}
	if t.output == nil {
		return nil, errors.Wrap(ErrTaskNotFound, "task output not found")
	}
	return t.output, nil
}

func (s *Service) Download(ctx context.Context, taskID string, kind models.ArtifactKind) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.completedOutput(taskID, "download results")
	if err != nil {
		return nil, err
	}

	if !kind.Valid() {
		return nil, &errs.ValidationError{Field: "type", Err: fmt.Errorf("invalid download type %q", kind)}
	}

	d, ok := out.artifacts[kind]
	if !ok {
		return nil, errors.Wrapf(ErrTaskNotFound, "%s artifact not found", kind)
	}
	return &d, nil
}

func (s *Service) Results(ctx context.Context, taskID string) (*models.ResultsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.completedOutput(taskID, "get results")
	if err != nil {
		return nil, err
	}

	return &models.ResultsResponse{
		Success: true,
		Count:   len(out.results),
		Results: out.results,
	}, nil
}

// finish moves a task out of the active set. Callers hold s.mu.
func (s *Service) finish(t *task) {
	delete(s.activeTasks, t.id)
	s.completedTask[t.id] = s.now()
}

// evictFinished drops tasks that ended more than TaskRetention ago. Callers
// hold s.mu.
func (s *Service) evictFinished() {
	retention := s.cfg.Conditions.TaskRetention
	if retention <= 0 {
		return
	}

	cutoff := s.now().Add(-retention)
	for id, finished := range s.completedTask {
		if finished.After(cutoff) {
			continue
		}
		delete(s.completedTask, id)
		delete(s.tasks, id)
		s.log.Debug("task evicted", slog.String("taskID", id))
	}
}

// Wait blocks until every running task has stopped or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every active task and waits for the runners to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id := range s.activeTasks {
		t := s.tasks[id]
		close(t.cancel)
		t.status = models.StatusCancelled
		t.message = "Service shutting down"
		s.finish(t)
	}
	s.mu.Unlock()

	return s.Wait(ctx)
}
