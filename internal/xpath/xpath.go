package xpath

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"web2json/internal/errs"
	"web2json/internal/models"
	"web2json/internal/tasks"
	"web2json/internal/transport"
)

// Client calls the synchronous XPath generation endpoint. No task is created.
type Client struct {
	doer transport.Doer
	log  *slog.Logger
}

func New(d transport.Doer, log *slog.Logger) *Client {
	return &Client{
		doer: d,
		log:  log,
	}
}

func (c *Client) Generate(ctx context.Context, req models.XPathRequest) (models.XPathResponse, error) {
	var res models.XPathResponse

	if !hasSample(req) {
		return res, &errs.ValidationError{Field: "html_content", Err: errs.ErrEmptySamples}
	}
	if err := tasks.ValidateFields(req.Fields); err != nil {
		return res, err
	}
	req.Fields = tasks.NormalizeFields(req.Fields)

	if err := transport.JSON(ctx, c.doer, http.MethodPost, "/xpath/generate", req, &res); err != nil {
		return res, err
	}

	c.log.Debug("xpath generated", slog.Int("fields", len(res.Fields)))
	return res, nil
}

func hasSample(req models.XPathRequest) bool {
	if strings.TrimSpace(req.HTMLContent) != "" || strings.TrimSpace(req.URL) != "" {
		return true
	}
	for _, s := range append(append([]string{}, req.HTMLContents...), req.URLs...) {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// Validate compiles expr without evaluating it.
func Validate(expr string) error {
	if _, err := xpath.Compile(expr); err != nil {
		return &errs.ValidationError{Field: "xpath", Err: err}
	}
	return nil
}

// Evaluate runs expr against an HTML document and returns the trimmed,
// non-empty text of every match. Scalar results yield a single value.
func Evaluate(src, expr string) ([]string, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, &errs.ValidationError{Field: "xpath", Err: err}
	}

	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}

	return evaluate(doc, compiled), nil
}

// EvaluateNode is Evaluate on an already parsed document.
func EvaluateNode(doc *html.Node, expr string) ([]string, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, &errs.ValidationError{Field: "xpath", Err: err}
	}
	return evaluate(doc, compiled), nil
}

func evaluate(doc *html.Node, expr *xpath.Expr) []string {
	switch v := expr.Evaluate(htmlquery.CreateXPathNavigator(doc)).(type) {
	case *xpath.NodeIterator:
		values := []string{}
		for v.MoveNext() {
			if s := strings.TrimSpace(v.Current().Value()); s != "" {
				values = append(values, s)
			}
		}
		return values
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return []string{}
	default:
		return []string{fmt.Sprint(v)}
	}
}
