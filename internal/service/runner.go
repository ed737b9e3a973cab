package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"web2json/internal/models"
	"web2json/internal/utils"
)

const maxValueSamples = 3

// job is the working state of one task while its phases run.
type job struct {
	docs    []*html.Node
	fields  []models.XPathField
	parser  []byte
	results []map[string]any
}

type step struct {
	phase    models.Phase
	progress float64
	message  string
	run      func(ctx context.Context, t *task, j *job) error
}

func (s *Service) steps() []step {
	return []step{
		{models.PhasePlanning, 5, "Loading HTML samples", s.loadSamples},
		{models.PhaseSchemaIteration, 25, "Extracting and merging schema", s.buildSchema},
		{models.PhaseCodeGeneration, 50, "Generating parser code", s.generateCode},
		{models.PhaseBatchParsing, 70, "Parsing HTML samples", s.parseSamples},
		{models.PhasePackaging, 90, "Packaging results", s.packageResults},
	}
}

func (s *Service) taskProcessing(t *task) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-t.cancel:
			cancel()
		case <-ctx.Done():
		}
	}()

	var j job
	for _, st := range s.steps() {
		if !s.enter(t, st) || !s.pause(t) {
			s.log.Info("task stopped at checkpoint", slog.String("taskID", t.id), slog.String("phase", string(st.phase)))
			return
		}

		if err := st.run(ctx, t, &j); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.failTask(t, err)
			return
		}
	}

	s.completeTask(t, &j)
}

// update applies fn unless the task already reached a terminal state.
func (s *Service) update(t *task, fn func(t *task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.terminal() {
		return false
	}
	fn(t)
	return true
}

func (s *Service) enter(t *task, st step) bool {
	return s.update(t, func(t *task) {
		t.status = models.StatusRunning
		t.phase = st.phase
		t.progress = st.progress
		t.message = st.message
		s.log.Debug("phase started", slog.String("taskID", t.id), slog.String("phase", string(st.phase)))
	})
}

func (s *Service) pause(t *task) bool {
	if s.cfg.Conditions.PhaseDelay <= 0 {
		select {
		case <-t.cancel:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(s.cfg.Conditions.PhaseDelay)
	defer timer.Stop()

	select {
	case <-t.cancel:
		return false
	case <-timer.C:
		return true
	}
}

func (s *Service) failTask(t *task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.terminal() {
		return
	}
	t.status = models.StatusFailed
	t.err = err.Error()
	t.message = "Task failed"
	s.finish(t)

	s.log.Error("task failed", slog.String("taskID", t.id), slog.String("phase", string(t.phase)), slog.String("error", err.Error()))
}

func (s *Service) completeTask(t *task, j *job) {
	out, err := s.buildOutput(t, j)
	if err != nil {
		s.failTask(t, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.terminal() {
		return
	}
	t.status = models.StatusCompleted
	t.progress = 100
	t.message = "Task completed"
	t.output = out
	s.finish(t)

	s.log.Info("task completed",
		slog.String("taskID", t.id),
		slog.Int("fields", len(j.fields)),
		slog.Int("results", len(j.results)),
		slog.Duration("elapsed", time.Since(t.created)),
	)
}

func (s *Service) loadSamples(ctx context.Context, t *task, j *job) error {
	failed := 0

	for i, src := range t.req.HTMLContents {
		doc, err := utils.ParseHTML(src)
		if err != nil {
			s.log.Warn("skipping unparsable sample", slog.String("taskID", t.id), slog.Int("sample", i+1), slog.String("error", err.Error()))
			failed++
			continue
		}
		j.docs = append(j.docs, doc)
	}

	for _, u := range t.req.URLs {
		src, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("failed to fetch sample", slog.String("taskID", t.id), slog.String("url", u), slog.String("error", err.Error()))
			failed++
			continue
		}
		doc, err := utils.ParseHTML(src)
		if err != nil {
			failed++
			continue
		}
		j.docs = append(j.docs, doc)
	}

	s.update(t, func(t *task) {
		t.details = map[string]any{"samples": len(j.docs), "failed": failed}
	})

	if len(j.docs) == 0 {
		return errors.New("no HTML sample could be loaded")
	}
	return nil
}

func (s *Service) iterationRounds(req models.GenerateRequest) int {
	if req.IterationRounds > 0 {
		return req.IterationRounds
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiConfig.IterationRounds > 0 {
		return s.apiConfig.IterationRounds
	}
	return 3
}

func (s *Service) buildSchema(ctx context.Context, t *task, j *job) error {
	learn := j.docs
	if n := s.iterationRounds(t.req); n < len(learn) {
		learn = learn[:n]
	}

	if t.req.SchemaMode == models.SchemaPredefined {
		j.fields = locateFields(learn, t.req.Fields)
	} else {
		j.fields = utils.InferFields(learn)
	}

	if len(j.fields) == 0 {
		return errors.New("no fields could be discovered in the samples")
	}

	s.update(t, func(t *task) {
		t.details = map[string]any{"samples": len(j.docs), "learned_from": len(learn), "fields": len(j.fields)}
	})
	return nil
}

func locateFields(docs []*html.Node, fields []models.Field) []models.XPathField {
	out := make([]models.XPathField, 0, len(fields))
	for _, f := range fields {
		if f.FieldType == "" {
			f.FieldType = models.FieldString
		}
		xf := models.XPathField{
			Name:        f.Name,
			Description: f.Description,
			FieldType:   f.FieldType,
			XPath:       utils.LocateField(docs, f),
		}
		xf.ValueSample = valueSample(docs, xf.XPath)
		out = append(out, xf)
	}
	return out
}

func valueSample(docs []*html.Node, expr string) []string {
	sample := []string{}
	for _, doc := range docs {
		for _, v := range utils.Values(doc, expr) {
			if len(sample) == maxValueSamples {
				return sample
			}
			sample = append(sample, v)
		}
	}
	return sample
}

func (s *Service) generateCode(ctx context.Context, t *task, j *job) error {
	for i := range j.fields {
		if j.fields[i].ValueSample == nil {
			j.fields[i].ValueSample = valueSample(j.docs, j.fields[i].XPath)
		}
	}

	src, err := utils.ParserSource(j.fields)
	if err != nil {
		return errors.Wrap(err, "render parser")
	}
	j.parser = src
	return nil
}

func (s *Service) parseSamples(ctx context.Context, t *task, j *job) error {
	if t.req.OutputMode == models.OutputXPathOnly {
		return nil
	}

	total := len(j.docs)
	for i, doc := range j.docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		record := make(map[string]any, len(j.fields))
		for _, f := range j.fields {
			record[f.Name] = utils.Convert(utils.Values(doc, f.XPath), f.FieldType)
		}
		j.results = append(j.results, record)

		parsed := i + 1
		s.update(t, func(t *task) {
			t.progress = 70 + 20*float64(parsed)/float64(total)
			t.details = map[string]any{"parsed": parsed, "total": total}
		})
	}
	return nil
}

func (s *Service) packageResults(ctx context.Context, t *task, j *job) error {
	s.update(t, func(t *task) {
		t.details = map[string]any{"files": len(j.results)}
	})
	return nil
}

func (s *Service) buildOutput(t *task, j *job) (*output, error) {
	schema, err := utils.MarshalIndent(utils.Schema(j.fields))
	if err != nil {
		return nil, errors.Wrap(err, "encode schema")
	}

	readme, err := utils.README(t.id, j.fields, len(j.results))
	if err != nil {
		return nil, errors.Wrap(err, "render readme")
	}

	entries := []utils.ZipEntry{
		{Name: "parser.py", Data: j.parser},
		{Name: "schema.json", Data: schema},
		{Name: "README.md", Data: readme},
	}
	for i, r := range j.results {
		data, err := utils.MarshalIndent(r)
		if err != nil {
			return nil, errors.Wrap(err, "encode result")
		}
		entries = append(entries, utils.ZipEntry{Name: fmt.Sprintf("results/sample_%d.json", i+1), Data: data})
	}

	archive, err := utils.CreateZipArchive(entries)
	if err != nil {
		return nil, errors.Wrap(err, "create zip archive")
	}

	short := t.id
	if len(short) > 8 {
		short = short[:8]
	}

	out := &output{
		fields:  j.fields,
		results: j.results,
		artifacts: map[models.ArtifactKind]Download{
			models.ArtifactZIP:    {ContentType: "application/zip", FileName: "parser_results_" + short + ".zip", Data: archive},
			models.ArtifactParser: {ContentType: "text/x-python", FileName: "parser.py", Data: j.parser},
		},
	}
	if out.results == nil {
		out.results = []map[string]any{}
	}

	if t.req.OutputMode != models.OutputXPathOnly {
		columns := make([]string, 0, len(j.fields))
		for _, f := range j.fields {
			columns = append(columns, f.Name)
		}

		jsonl, err := utils.JSONL(j.results)
		if err != nil {
			return nil, errors.Wrap(err, "encode jsonl")
		}
		csvData, err := utils.CSV(columns, j.results)
		if err != nil {
			return nil, errors.Wrap(err, "encode csv")
		}

		out.artifacts[models.ArtifactJSONL] = Download{ContentType: "application/x-ndjson", FileName: "results.jsonl", Data: jsonl}
		out.artifacts[models.ArtifactCSV] = Download{ContentType: "text/csv", FileName: "results.csv", Data: csvData}
	}

	return out, nil
}
