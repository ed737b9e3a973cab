package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"web2json/internal/errs"
	"web2json/internal/models"
	"web2json/internal/utils"
)

func (s *Service) GetConfig(ctx context.Context) models.APIConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiConfig
}

// UpdateConfig overwrites the keys present in upd. Sending the same update
// twice leaves the same configuration.
func (s *Service) UpdateConfig(ctx context.Context, upd models.APIConfigUpdate) (*models.UpdateConfigResponse, error) {
	if upd.IterationRounds != nil && *upd.IterationRounds < 1 {
		return nil, &errs.ValidationError{Field: "iteration_rounds", Err: fmt.Errorf("must be at least 1")}
	}
	if upd.APIBase != nil && *upd.APIBase != "" {
		if err := utils.CheckURL(*upd.APIBase); err != nil {
			return nil, &errs.ValidationError{Field: "api_base", Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if upd.APIKey != nil {
		s.apiConfig.APIKey = *upd.APIKey
	}
	if upd.APIBase != nil {
		s.apiConfig.APIBase = *upd.APIBase
	}
	if upd.IterationRounds != nil {
		s.apiConfig.IterationRounds = *upd.IterationRounds
	}

	s.log.Info("api config updated", slog.Int("iterationRounds", s.apiConfig.IterationRounds))

	return &models.UpdateConfigResponse{
		Success: true,
		Message: "Configuration updated",
		Config:  s.apiConfig,
	}, nil
}

// loadDocs parses inline samples and fetches URL samples.
func (s *Service) loadDocs(ctx context.Context, contents, urls []string) ([]*html.Node, error) {
	var docs []*html.Node

	for _, src := range contents {
		if strings.TrimSpace(src) == "" {
			continue
		}
		doc, err := utils.ParseHTML(src)
		if err != nil {
			return nil, &errs.ValidationError{Field: "html_content", Err: err}
		}
		docs = append(docs, doc)
	}

	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		src, err := s.fetcher.Fetch(ctx, u)
		if err != nil {
			return nil, &errs.ValidationError{Field: "url", Err: err}
		}
		doc, err := utils.ParseHTML(src)
		if err != nil {
			return nil, &errs.ValidationError{Field: "url", Err: err}
		}
		docs = append(docs, doc)
	}

	if len(docs) == 0 {
		return nil, &errs.ValidationError{Field: "html_content", Err: fmt.Errorf("at least one HTML source is required")}
	}
	return docs, nil
}

// GenerateXPath locates an XPath for every requested field without creating
// a task.
func (s *Service) GenerateXPath(ctx context.Context, req models.XPathRequest) (*models.XPathResponse, error) {
	if len(req.Fields) == 0 {
		return nil, &errs.ValidationError{Field: "fields", Err: fmt.Errorf("at least one field is required")}
	}

	docs, err := s.loadDocs(ctx,
		append([]string{req.HTMLContent}, req.HTMLContents...),
		append([]string{req.URL}, req.URLs...),
	)
	if err != nil {
		return nil, err
	}

	learn := docs
	if n := req.IterationRounds; n > 0 && n < len(learn) {
		learn = learn[:n]
	}

	fields := locateFields(learn, req.Fields)

	s.log.Info("xpath generated", slog.Int("samples", len(docs)), slog.Int("fields", len(fields)))

	return &models.XPathResponse{
		Success: true,
		Fields:  fields,
	}, nil
}

// PreliminarySchema runs only the schema phase in auto mode on at most three
// samples.
func (s *Service) PreliminarySchema(ctx context.Context, req models.GenerateRequest) (*models.SchemaResponse, error) {
	docs, err := s.loadDocs(ctx, req.HTMLContents, req.URLs)
	if err != nil {
		return nil, err
	}
	if len(docs) > 3 {
		docs = docs[:3]
	}

	inferred := utils.InferFields(docs)

	fields := make([]models.Field, 0, len(inferred))
	for _, f := range inferred {
		fields = append(fields, models.Field{Name: f.Name, Description: f.Description, FieldType: f.FieldType})
	}

	return &models.SchemaResponse{
		Success: true,
		Schema:  utils.Schema(inferred),
		Fields:  fields,
		Count:   len(fields),
	}, nil
}
