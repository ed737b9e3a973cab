package configstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web2json/internal/config"
	"web2json/internal/errs"
	"web2json/internal/handlers"
	"web2json/internal/logger"
	"web2json/internal/models"
	"web2json/internal/router"
	"web2json/internal/service"
	"web2json/internal/transport"
	"web2json/internal/utils"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	cfg := &config.Config{Conditions: config.Conditions{MaxActiveTasks: 1, IterationRounds: 3}}
	s := service.NewService(cfg, utils.NewFetcher("", 0, time.Second), log)

	srv := httptest.NewServer(router.NewRouter(handlers.NewHandler(s, log)))
	t.Cleanup(srv.Close)

	return New(transport.New(transport.Options{APIRoot: srv.URL + "/api"}, log), log)
}

func TestGetAndUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.APIConfig{IterationRounds: 3}, cfg)

	key, base := "sk-1234567890", "https://api.openai.com/v1"
	res, err := store.Update(ctx, models.APIConfigUpdate{APIKey: &key, APIBase: &base})
	require.NoError(t, err)
	assert.True(t, res.Success)

	rounds := 2
	_, err = store.Update(ctx, models.APIConfigUpdate{IterationRounds: &rounds})
	require.NoError(t, err)

	cfg, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.APIConfig{APIKey: key, APIBase: base, IterationRounds: 2}, cfg)
}

func TestUpdateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rounds := 4
	upd := models.APIConfigUpdate{IterationRounds: &rounds}

	first, err := store.Update(ctx, upd)
	require.NoError(t, err)
	second, err := store.Update(ctx, upd)
	require.NoError(t, err)

	assert.Equal(t, first.Config, second.Config)
}

func TestUpdateRejected(t *testing.T) {
	store := newTestStore(t)

	zero := 0
	_, err := store.Update(context.Background(), models.APIConfigUpdate{IterationRounds: &zero})

	var reqErr *errs.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Contains(t, reqErr.Payload["detail"], "iteration_rounds")
}

func TestMasked(t *testing.T) {
	assert.Equal(t, "", Masked(""))
	assert.Equal(t, "abcd", Masked("abcd"))
	assert.Equal(t, "*********7890", Masked("sk-1234567890"))
}
