package tasks

import (
	"fmt"
	"strings"

	"web2json/internal/errs"
	"web2json/internal/models"
)

// Params describes one generation job.
type Params struct {
	// Samples are raw HTML documents.
	Samples []string
	// URLs are fetched by the service and count as samples.
	URLs            []string
	SchemaMode      models.SchemaMode
	Fields          []models.Field
	OutputMode      models.OutputMode
	Domain          string
	IterationRounds int
}

func (p Params) sampleCount() int {
	n := 0
	for _, s := range p.Samples {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	for _, u := range p.URLs {
		if strings.TrimSpace(u) != "" {
			n++
		}
	}
	return n
}

// Validate checks the request locally so an empty job never reaches the
// service.
func (p Params) Validate() error {
	if p.sampleCount() == 0 {
		return &errs.ValidationError{Field: "samples", Err: errs.ErrEmptySamples}
	}

	switch p.SchemaMode {
	case "", models.SchemaAuto, models.SchemaPredefined:
	default:
		return &errs.ValidationError{Field: "schema_mode", Err: fmt.Errorf("unknown schema mode %q", p.SchemaMode)}
	}

	switch p.OutputMode {
	case "", models.OutputStructuredData, models.OutputXPathOnly:
	default:
		return &errs.ValidationError{Field: "output_mode", Err: fmt.Errorf("unknown output mode %q", p.OutputMode)}
	}

	if p.SchemaMode == models.SchemaPredefined && len(p.Fields) == 0 {
		return &errs.ValidationError{Field: "fields", Err: errs.ErrNoFields}
	}

	return validateFields(p.Fields)
}

func validateFields(fields []models.Field) error {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return &errs.ValidationError{Field: fmt.Sprintf("fields[%d].name", i), Err: fmt.Errorf("field name is required")}
		}
		if _, ok := seen[name]; ok {
			return &errs.ValidationError{Field: fmt.Sprintf("fields[%d].name", i), Err: fmt.Errorf("duplicate field %q", name)}
		}
		seen[name] = struct{}{}

		if f.FieldType != "" && !f.FieldType.Valid() {
			return &errs.ValidationError{Field: fmt.Sprintf("fields[%d].field_type", i), Err: fmt.Errorf("unknown field type %q", f.FieldType)}
		}
	}
	return nil
}

// ValidateFields is shared with the synchronous XPath call.
func ValidateFields(fields []models.Field) error {
	if len(fields) == 0 {
		return &errs.ValidationError{Field: "fields", Err: errs.ErrNoFields}
	}
	return validateFields(fields)
}

func (p Params) request() models.GenerateRequest {
	req := models.GenerateRequest{
		SchemaMode:      p.SchemaMode,
		OutputMode:      p.OutputMode,
		Domain:          p.Domain,
		IterationRounds: p.IterationRounds,
	}
	if req.SchemaMode == "" {
		req.SchemaMode = models.SchemaAuto
	}
	if req.OutputMode == "" {
		req.OutputMode = models.OutputStructuredData
	}

	for _, s := range p.Samples {
		if strings.TrimSpace(s) != "" {
			req.HTMLContents = append(req.HTMLContents, s)
		}
	}
	for _, u := range p.URLs {
		if u = strings.TrimSpace(u); u != "" {
			req.URLs = append(req.URLs, u)
		}
	}

	if req.SchemaMode == models.SchemaPredefined {
		req.Fields = NormalizeFields(p.Fields)
	}

	return req
}

// NormalizeFields trims names and defaults the type to string.
func NormalizeFields(fields []models.Field) []models.Field {
	out := make([]models.Field, 0, len(fields))
	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Description = strings.TrimSpace(f.Description)
		if f.FieldType == "" {
			f.FieldType = models.FieldString
		}
		out = append(out, f)
	}
	return out
}
