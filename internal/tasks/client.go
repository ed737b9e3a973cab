package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"web2json/internal/errs"
	"web2json/internal/models"
	"web2json/internal/transport"
)

var ErrGenerationFailed = errors.New("generation failed")

type Client struct {
	doer         transport.Doer
	pollInterval time.Duration
	log          *slog.Logger
}

func NewClient(d transport.Doer, pollInterval time.Duration, log *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Client{
		doer:         d,
		pollInterval: pollInterval,
		log:          log,
	}
}

func (c *Client) Create(ctx context.Context, p Params) (*Handle, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	req := p.request()

	var res models.GenerateResponse
	if err := transport.JSON(ctx, c.doer, http.MethodPost, "/parser/generate", req, &res); err != nil {
		return nil, err
	}

	if res.TaskID == "" {
		return nil, &errs.RequestError{
			Method:  http.MethodPost,
			Path:    "/parser/generate",
			Message: "service returned no task id",
			Payload: map[string]any{"error": "service returned no task id"},
		}
	}

	interval := c.pollInterval
	if res.PollIntervalMs > 0 {
		interval = time.Duration(res.PollIntervalMs) * time.Millisecond
	}

	c.log.Info("task created",
		slog.String("taskID", res.TaskID),
		slog.Int("samples", len(req.HTMLContents)+len(req.URLs)),
		slog.String("schemaMode", string(req.SchemaMode)),
		slog.Duration("pollInterval", interval),
	)

	return newHandle(res.TaskID, interval), nil
}

// Attach returns a handle for a task created elsewhere, starting in
// StateCreated. The first poll brings it up to date.
func (c *Client) Attach(id string) (*Handle, error) {
	if id == "" {
		return nil, &errs.ValidationError{Field: "task_id", Err: fmt.Errorf("task id is required")}
	}
	return newHandle(id, c.pollInterval), nil
}

// Poll issues exactly one status request and applies it. Overlapping polls on
// the same handle are refused with a StateError. Once the task is terminal the
// cached snapshot is returned without a request.
func (c *Client) Poll(ctx context.Context, h *Handle) (Task, error) {
	if !h.inFlight.CompareAndSwap(false, true) {
		c.log.Warn("poll refused, previous poll still in flight", slog.String("taskID", h.id))
		return h.Snapshot(), &errs.StateError{TaskID: h.id, Op: "poll", State: string(h.State()), Err: errs.ErrPollInFlight}
	}
	defer h.inFlight.Store(false)

	if snap := h.Snapshot(); snap.State.Terminal() {
		return snap, nil
	}

	path := "/parser/status/" + url.PathEscape(h.id)
	c.log.Debug("polling task", slog.String("taskID", h.id))

	var res models.StatusResponse
	if err := transport.JSON(ctx, c.doer, http.MethodGet, path, nil, &res); err != nil {
		if errs.IsNotFoundStatus(err) {
			var reqErr *errs.RequestError
			errors.As(err, &reqErr)
			nf := &errs.NotFoundError{TaskID: h.id, Err: reqErr}
			if h.fail(nf) {
				c.log.Info("task transitioned", slog.String("taskID", h.id), slog.String("to", string(StateFailed)), slog.String("reason", nf.Error()))
			}
			return h.Snapshot(), nf
		}

		h.setLastErr(err)
		return h.Snapshot(), err
	}

	if err := c.apply(h, res); err != nil {
		h.setLastErr(err)
		return h.Snapshot(), err
	}

	return h.Snapshot(), nil
}

func (c *Client) apply(h *Handle, res models.StatusResponse) error {
	var next State
	switch res.Status {
	case models.StatusPending:
		next = StateCreated
	case models.StatusRunning:
		next = StateRunning
	case models.StatusCompleted:
		next = StateCompleted
	case models.StatusFailed:
		next = StateFailed
	case models.StatusCancelled:
		next = StateCancelled
	default:
		return &errs.RequestError{
			Method:     http.MethodGet,
			Path:       "/parser/status/" + h.id,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("unknown task status %q", res.Status),
			Payload:    map[string]any{"error": "unknown task status"},
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t := &h.task
	from := t.State
	h.lastErr = nil

	if from.Terminal() {
		return nil
	}

	phase := res.Phase
	if phase == "" {
		phase = t.Phase
	}

	cur, seen := pointOf(t.State, t.Phase, t.Progress), pointOf(next, phase, res.Progress)
	if !seen.after(cur) {
		if cur.after(seen) {
			c.log.Warn("stale status discarded",
				slog.String("taskID", h.id),
				slog.String("status", string(res.Status)),
				slog.String("phase", string(phase)),
				slog.Float64("progress", res.Progress),
				slog.String("recordedPhase", string(t.Phase)),
			)
			return nil
		}
		// Same point: only the descriptive fields move.
		t.Message = res.Message
		t.Details = res.Details
		t.UpdatedAt = time.Now()
		return nil
	}

	if next == StateCompleted && t.CancelRequested {
		next = StateCancelled
	}

	prevPhase := t.Phase
	t.State = next
	t.Phase = phase
	t.Progress = res.Progress
	t.Message = res.Message
	t.Details = res.Details
	t.UpdatedAt = time.Now()

	switch next {
	case StateCompleted:
		t.Artifacts = []models.ArtifactKind{}
		if res.Result != nil {
			t.Artifacts = append(t.Artifacts, res.Result.Artifacts...)
		}
	case StateFailed:
		msg := res.Error
		if msg == "" {
			msg = res.Message
		}
		t.Err = ErrGenerationFailed
		if msg != "" {
			t.Err = errors.Wrap(ErrGenerationFailed, msg)
		}
	}

	switch {
	case from != next:
		c.log.Info("task transitioned",
			slog.String("taskID", h.id),
			slog.String("from", string(from)),
			slog.String("to", string(next)),
			slog.String("phase", string(phase)),
		)
	case prevPhase != phase:
		c.log.Info("phase changed", slog.String("taskID", h.id), slog.String("phase", string(phase)))
	}

	return nil
}

// Cancel records the cancellation intent before the request is sent, so a
// concurrently applied completed status resolves to cancelled. Repeated calls
// are forwarded to the service.
func (c *Client) Cancel(ctx context.Context, h *Handle) (models.CancelResponse, error) {
	h.requestCancel()

	path := "/parser/cancel/" + url.PathEscape(h.id)

	var ack models.CancelResponse
	if err := transport.JSON(ctx, c.doer, http.MethodPost, path, nil, &ack); err != nil {
		if errs.IsNotFoundStatus(err) {
			var reqErr *errs.RequestError
			errors.As(err, &reqErr)
			nf := &errs.NotFoundError{TaskID: h.id, Err: reqErr}
			h.fail(nf)
			return ack, nf
		}

		h.setLastErr(err)
		return ack, err
	}

	if h.forceCancelled() {
		c.log.Info("task transitioned", slog.String("taskID", h.id), slog.String("to", string(StateCancelled)))
	}

	return ack, nil
}

// ListArtifacts reads the last snapshot; it never touches the network.
func (c *Client) ListArtifacts(h *Handle) []models.ArtifactKind {
	return h.Snapshot().Artifacts
}

type Artifact struct {
	Kind        models.ArtifactKind
	ContentType string
	Data        []byte
}

func (a *Artifact) Text() string {
	return string(a.Data)
}

// FileName is the name the service suggests for the artifact.
func (a *Artifact) FileName(taskID string) string {
	switch a.Kind {
	case models.ArtifactZIP:
		short := taskID
		if len(short) > 8 {
			short = short[:8]
		}
		return "parser_results_" + short + ".zip"
	case models.ArtifactParser:
		return "parser.py"
	case models.ArtifactCSV:
		return "results.csv"
	}
	return "results.jsonl"
}

// FetchArtifact downloads one artifact. Nothing is cached.
func (c *Client) FetchArtifact(ctx context.Context, h *Handle, kind models.ArtifactKind) (*Artifact, error) {
	if !kind.Valid() {
		return nil, &errs.ValidationError{Field: "kind", Err: fmt.Errorf("unknown artifact kind %q", kind)}
	}

	if err := requireCompleted(h, "fetch artifact"); err != nil {
		return nil, err
	}

	expect := transport.ExpectText
	if kind.Binary() {
		expect = transport.ExpectBinary
	}

	res, err := c.doer.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/parser/download/" + url.PathEscape(h.id),
		Query:  map[string]string{"type": string(kind)},
		Expect: expect,
	})
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Kind:        kind,
		ContentType: res.ContentType,
		Data:        res.Body,
	}, nil
}

// FetchResults returns every parsed record of a completed task.
func (c *Client) FetchResults(ctx context.Context, h *Handle) (models.ResultsResponse, error) {
	var res models.ResultsResponse
	if err := requireCompleted(h, "fetch results"); err != nil {
		return res, err
	}

	err := transport.JSON(ctx, c.doer, http.MethodGet, "/parser/results/"+url.PathEscape(h.id), nil, &res)
	return res, err
}

// PreliminarySchema asks the service for a draft schema of the samples
// without creating a task.
func (c *Client) PreliminarySchema(ctx context.Context, p Params) (models.SchemaResponse, error) {
	var res models.SchemaResponse

	p.SchemaMode = models.SchemaAuto
	if err := p.Validate(); err != nil {
		return res, err
	}

	err := transport.JSON(ctx, c.doer, http.MethodPost, "/parser/generate-preliminary-schema", p.request(), &res)
	return res, err
}

func requireCompleted(h *Handle, op string) error {
	if state := h.State(); state != StateCompleted {
		return &errs.StateError{TaskID: h.id, Op: op, State: string(state), Err: errs.ErrNotCompleted}
	}
	return nil
}
