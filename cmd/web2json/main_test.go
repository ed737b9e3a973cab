package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web2json/internal/config"
	"web2json/internal/errs"
	"web2json/internal/handlers"
	"web2json/internal/logger"
	"web2json/internal/models"
	"web2json/internal/router"
	"web2json/internal/service"
	"web2json/internal/utils"
)

const page = `<html><head><title>Hello</title></head><body><h1>Hi</h1></body></html>`

func TestFieldSliceSet(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    models.Field
		wantErr bool
	}{
		{"name only", "title", models.Field{Name: "title", FieldType: models.FieldString}, false},
		{"with type", "price:float", models.Field{Name: "price", FieldType: models.FieldFloat}, false},
		{"with description", "tags:array:post tags: all of them", models.Field{Name: "tags", FieldType: models.FieldArray, Description: "post tags: all of them"}, false},
		{"empty type", "title::headline", models.Field{Name: "title", FieldType: models.FieldString, Description: "headline"}, false},
		{"empty name", ":int", models.Field{}, true},
		{"unknown type", "price:money", models.Field{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fs fieldSlice
			err := fs.Set(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, fs)
				return
			}
			require.NoError(t, err)
			require.Len(t, fs, 1)
			assert.Equal(t, tt.want, fs[0])
		})
	}
}

func TestFieldSliceString(t *testing.T) {
	var fs fieldSlice
	require.NoError(t, fs.Set("title"))
	require.NoError(t, fs.Set("views:int"))

	assert.Equal(t, "title:string,views:int", fs.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&errs.ValidationError{Field: "samples", Err: errs.ErrEmptySamples}, 2},
		{&errs.RequestError{StatusCode: 500}, 3},
		{&errs.NotFoundError{TaskID: "t1"}, 4},
		{errors.Wrap(&errs.StateError{TaskID: "t1", Err: errs.ErrNotCompleted}, "download"), 5},
		{fmt.Errorf("boom"), 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func newStandIn(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	cfg := &config.Config{
		Conditions: config.Conditions{
			MaxActiveTasks:   2,
			PollIntervalHint: 10 * time.Millisecond,
			IterationRounds:  3,
		},
	}
	s := service.NewService(cfg, utils.NewFetcher("", 0, time.Second), log)
	srv := httptest.NewServer(router.NewRouter(handlers.NewHandler(s, log)))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	t.Setenv("LOCALE_FILE", filepath.Join(t.TempDir(), "locale.json"))
	t.Setenv("LOG_LEVEL", "error")

	return srv.URL + "/api"
}

func run(t *testing.T, apiRoot string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", "", "--api-root", apiRoot}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateDownloadsArtifacts(t *testing.T) {
	apiRoot := newStandIn(t)

	dir := t.TempDir()
	sample := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(sample, []byte(page), 0o644))
	outDir := filepath.Join(dir, "out")

	_, err := run(t, apiRoot, "locale", "set", "en-US")
	require.NoError(t, err)

	out, err := run(t, apiRoot, "generate", "--html", sample, "--field", "title", "--out", outDir, "--type", "jsonl,parser")
	require.NoError(t, err)

	assert.Contains(t, out, "created")
	assert.Contains(t, out, "Completed")

	data, err := os.ReadFile(filepath.Join(outDir, "results.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, "{\"title\":\"Hello\"}\n", string(data))

	assert.FileExists(t, filepath.Join(outDir, "parser.py"))
	assert.NoFileExists(t, filepath.Join(outDir, "results.csv"))
}

func TestGenerateWithoutSamples(t *testing.T) {
	apiRoot := newStandIn(t)

	_, err := run(t, apiRoot, "generate", "--field", "title")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestStatusOfUnknownTask(t *testing.T) {
	apiRoot := newStandIn(t)

	_, err := run(t, apiRoot, "status", "missing")
	require.Error(t, err)
	assert.Equal(t, 4, exitCode(err))
}

func TestConfigSetWithoutFlags(t *testing.T) {
	apiRoot := newStandIn(t)

	_, err := run(t, apiRoot, "locale", "set", "en-US")
	require.NoError(t, err)

	out, err := run(t, apiRoot, "config", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes made")

	out, err = run(t, apiRoot, "config", "set", "--rounds", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "iteration_rounds: 5")
}

func TestXPathEval(t *testing.T) {
	apiRoot := newStandIn(t)

	sample := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(sample, []byte(page), 0o644))

	out, err := run(t, apiRoot, "xpath", "eval", "--html", sample, "--expr", "//h1")
	require.NoError(t, err)
	assert.Equal(t, "Hi\n", out)
}
