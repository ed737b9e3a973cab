package configstore

import (
	"context"
	"log/slog"
	"net/http"

	"web2json/internal/models"
	"web2json/internal/transport"
)

const path = "/config"

// Store reads and writes the service-side API configuration. It caches
// nothing; every call is one round trip.
type Store struct {
	doer transport.Doer
	log  *slog.Logger
}

func New(d transport.Doer, log *slog.Logger) *Store {
	return &Store{
		doer: d,
		log:  log,
	}
}

func (s *Store) Get(ctx context.Context) (models.APIConfig, error) {
	var cfg models.APIConfig
	if err := transport.JSON(ctx, s.doer, http.MethodGet, path, nil, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Update sends only the keys set in upd. Detecting "nothing changed" is left
// to the caller.
func (s *Store) Update(ctx context.Context, upd models.APIConfigUpdate) (models.UpdateConfigResponse, error) {
	var res models.UpdateConfigResponse
	if err := transport.JSON(ctx, s.doer, http.MethodPost, path, upd, &res); err != nil {
		return res, err
	}

	s.log.Info("config updated",
		slog.Bool("apiKey", upd.APIKey != nil),
		slog.Bool("apiBase", upd.APIBase != nil),
		slog.Bool("iterationRounds", upd.IterationRounds != nil),
	)

	return res, nil
}

// Masked hides all but the last four characters of a key for display.
func Masked(key string) string {
	if len(key) <= 4 {
		return key
	}
	masked := make([]byte, len(key)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + key[len(key)-4:]
}
