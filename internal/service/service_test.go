package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web2json/internal/config"
	"web2json/internal/errs"
	"web2json/internal/logger"
	"web2json/internal/models"
)

const article = `<html>
<head>
  <title>Go 1.23 released</title>
  <meta name="description" content="Release notes">
</head>
<body>
  <h1>Go 1.23</h1>
  <span class="price">1,299.50 USD</span>
  <span id="views">Views: 42</span>
  <p>First paragraph</p>
  <p>Second paragraph</p>
</body>
</html>`

type stubFetcher map[string]string

func (f stubFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	if src, ok := f[rawURL]; ok {
		return src, nil
	}
	return "", fmt.Errorf("failed to fetch %s: status 404", rawURL)
}

func newTestService(delay time.Duration, maxActive int) *Service {
	cfg := &config.Config{
		Conditions: config.Conditions{
			MaxActiveTasks:   maxActive,
			PhaseDelay:       delay,
			PollIntervalHint: 250 * time.Millisecond,
			IterationRounds:  3,
		},
	}
	return NewService(cfg, stubFetcher{"https://example.com/a": article}, logger.Discard())
}

func waitStatus(t *testing.T, s *Service, id string, want models.TaskStatus) *models.StatusResponse {
	t.Helper()
	var res *models.StatusResponse
	require.Eventually(t, func() bool {
		var err error
		res, err = s.GetStatusTask(context.Background(), id)
		require.NoError(t, err)
		return res.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return res
}

func predefined(fields ...models.Field) models.GenerateRequest {
	return models.GenerateRequest{
		HTMLContents: []string{article},
		SchemaMode:   models.SchemaPredefined,
		Fields:       fields,
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestService(0, 3)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.GenerateRequest
	}{
		{name: "no samples", req: models.GenerateRequest{SchemaMode: models.SchemaAuto}},
		{name: "predefined without fields", req: models.GenerateRequest{HTMLContents: []string{article}, SchemaMode: models.SchemaPredefined}},
		{name: "unknown schema mode", req: models.GenerateRequest{HTMLContents: []string{article}, SchemaMode: "manual"}},
		{name: "bad url", req: models.GenerateRequest{URLs: []string{"ftp://x"}, SchemaMode: models.SchemaAuto}},
		{name: "bad field type", req: predefined(models.Field{Name: "a", FieldType: "date"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTask(ctx, tt.req)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestTaskRunsToCompletion(t *testing.T) {
	s := newTestService(0, 3)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, predefined(
		models.Field{Name: "title"},
		models.Field{Name: "price", FieldType: models.FieldFloat},
		models.Field{Name: "views", FieldType: models.FieldInt},
		models.Field{Name: "missing", FieldType: models.FieldBool},
	))
	require.NoError(t, err)
	assert.True(t, created.Success)
	assert.Equal(t, 250, created.PollIntervalMs)

	res := waitStatus(t, s, created.TaskID, models.StatusCompleted)
	assert.Equal(t, float64(100), res.Progress)
	assert.Equal(t, models.PhasePackaging, res.Phase)
	require.NotNil(t, res.Result)
	assert.Equal(t, []models.ArtifactKind{models.ArtifactJSONL, models.ArtifactCSV, models.ArtifactZIP, models.ArtifactParser}, res.Result.Artifacts)
	assert.Equal(t, 1, res.Result.Files)

	results, err := s.Results(ctx, created.TaskID)
	require.NoError(t, err)
	require.Equal(t, 1, results.Count)
	assert.Equal(t, map[string]any{
		"title":   "Go 1.23 released",
		"price":   1299.5,
		"views":   42,
		"missing": false,
	}, results.Results[0])

	csvFile, err := s.Download(ctx, created.TaskID, models.ArtifactCSV)
	require.NoError(t, err)
	assert.Equal(t, "title,price,views,missing\nGo 1.23 released,1299.5,42,false\n", string(csvFile.Data))

	parser, err := s.Download(ctx, created.TaskID, models.ArtifactParser)
	require.NoError(t, err)
	assert.Equal(t, "parser.py", parser.FileName)
	assert.Contains(t, string(parser.Data), `"title": ("//title", "string")`)

	archive, err := s.Download(ctx, created.TaskID, models.ArtifactZIP)
	require.NoError(t, err)
	assert.Equal(t, "application/zip", archive.ContentType)
	assert.True(t, strings.HasPrefix(archive.FileName, "parser_results_"))

	zr, err := zip.NewReader(bytes.NewReader(archive.Data), int64(len(archive.Data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"parser.py", "schema.json", "README.md", "results/sample_1.json"}, names)

	_, err = s.Download(ctx, created.TaskID, "pdf")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestAutoModeFromURL(t *testing.T) {
	s := newTestService(0, 3)

	created, err := s.CreateTask(context.Background(), models.GenerateRequest{
		URLs:       []string{"https://example.com/a"},
		SchemaMode: models.SchemaAuto,
	})
	require.NoError(t, err)

	res := waitStatus(t, s, created.TaskID, models.StatusCompleted)
	schema := res.Result.Schema
	assert.Contains(t, schema, "title")
	assert.Contains(t, schema, "heading")
	assert.Contains(t, schema, "paragraphs")
	assert.NotContains(t, schema, "images")
}

func TestXPathOnlyOutput(t *testing.T) {
	s := newTestService(0, 3)

	req := predefined(models.Field{Name: "title"})
	req.OutputMode = models.OutputXPathOnly
	created, err := s.CreateTask(context.Background(), req)
	require.NoError(t, err)

	res := waitStatus(t, s, created.TaskID, models.StatusCompleted)
	assert.Equal(t, []models.ArtifactKind{models.ArtifactZIP, models.ArtifactParser}, res.Result.Artifacts)

	_, err = s.Download(context.Background(), created.TaskID, models.ArtifactJSONL)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskFailsWithoutSamples(t *testing.T) {
	s := newTestService(0, 3)

	created, err := s.CreateTask(context.Background(), models.GenerateRequest{
		URLs:       []string{"https://example.com/gone"},
		SchemaMode: models.SchemaAuto,
	})
	require.NoError(t, err)

	res := waitStatus(t, s, created.TaskID, models.StatusFailed)
	assert.Contains(t, res.Error, "no HTML sample")
	assert.Nil(t, res.Result)

	_, err = s.CancelTask(context.Background(), created.TaskID)
	assert.Equal(t, errs.KindState, errs.KindOf(err))
}

func TestCancelTask(t *testing.T) {
	s := newTestService(time.Hour, 3)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)

	_, err = s.Download(ctx, created.TaskID, models.ArtifactZIP)
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	ack, err := s.CancelTask(ctx, created.TaskID)
	require.NoError(t, err)
	assert.True(t, ack.Success)

	again, err := s.CancelTask(ctx, created.TaskID)
	require.NoError(t, err)
	assert.True(t, again.Success)

	res, err := s.GetStatusTask(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Status)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Wait(waitCtx))

	res, err = s.GetStatusTask(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Status)

	_, err = s.CancelTask(ctx, "unknown")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestServerBusy(t *testing.T) {
	s := newTestService(time.Hour, 1)
	ctx := context.Background()

	first, err := s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	assert.ErrorIs(t, err, ErrServerBusy)

	_, err = s.CancelTask(ctx, first.TaskID)
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
}

func TestFinishedTasksAreEvicted(t *testing.T) {
	s := newTestService(0, 3)
	s.cfg.Conditions.TaskRetention = time.Minute

	var skew atomic.Int64
	s.now = func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }

	ctx := context.Background()

	first, err := s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)
	waitStatus(t, s, first.TaskID, models.StatusCompleted)

	second, err := s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)
	waitStatus(t, s, second.TaskID, models.StatusCompleted)

	_, err = s.GetStatusTask(ctx, first.TaskID)
	require.NoError(t, err, "kept within retention")

	skew.Store(int64(2 * time.Minute))

	third, err := s.CreateTask(ctx, predefined(models.Field{Name: "title"}))
	require.NoError(t, err)

	for _, id := range []string{first.TaskID, second.TaskID} {
		_, err = s.GetStatusTask(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	}

	_, err = s.GetStatusTask(ctx, third.TaskID)
	assert.NoError(t, err)

	s.mu.Lock()
	assert.NotContains(t, s.completedTask, first.TaskID)
	assert.NotContains(t, s.completedTask, second.TaskID)
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
}

func TestUpdateConfig(t *testing.T) {
	s := newTestService(0, 3)
	ctx := context.Background()

	key := "sk-test"
	res, err := s.UpdateConfig(ctx, models.APIConfigUpdate{APIKey: &key})
	require.NoError(t, err)
	assert.Equal(t, models.APIConfig{APIKey: "sk-test", IterationRounds: 3}, res.Config)

	rounds := 5
	_, err = s.UpdateConfig(ctx, models.APIConfigUpdate{IterationRounds: &rounds})
	require.NoError(t, err)
	_, err = s.UpdateConfig(ctx, models.APIConfigUpdate{IterationRounds: &rounds})
	require.NoError(t, err)
	assert.Equal(t, models.APIConfig{APIKey: "sk-test", IterationRounds: 5}, s.GetConfig(ctx))

	zero := 0
	_, err = s.UpdateConfig(ctx, models.APIConfigUpdate{IterationRounds: &zero})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	base := "not a url"
	_, err = s.UpdateConfig(ctx, models.APIConfigUpdate{APIBase: &base})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestGenerateXPath(t *testing.T) {
	s := newTestService(0, 3)

	res, err := s.GenerateXPath(context.Background(), models.XPathRequest{
		HTMLContent: article,
		Fields: []models.Field{
			{Name: "price", FieldType: models.FieldFloat},
			{Name: "nothing"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Fields, 2)

	assert.Equal(t, "//*[contains(concat(' ', normalize-space(@class), ' '), ' price ')]", res.Fields[0].XPath)
	assert.Equal(t, []string{"1,299.50 USD"}, res.Fields[0].ValueSample)
	assert.Empty(t, res.Fields[1].XPath)
	assert.Empty(t, res.Fields[1].ValueSample)

	_, err = s.GenerateXPath(context.Background(), models.XPathRequest{HTMLContent: article})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = s.GenerateXPath(context.Background(), models.XPathRequest{Fields: []models.Field{{Name: "a"}}})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestPreliminarySchema(t *testing.T) {
	s := newTestService(0, 3)

	res, err := s.PreliminarySchema(context.Background(), models.GenerateRequest{HTMLContents: []string{article}})
	require.NoError(t, err)

	assert.Equal(t, res.Count, len(res.Fields))
	assert.Equal(t, models.Field{Name: "title", Description: "Page title", FieldType: models.FieldString}, res.Fields[0])
	assert.Contains(t, res.Schema, "description")
}
