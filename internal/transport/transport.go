package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"web2json/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Expect int

const (
	ExpectJSON Expect = iota
	ExpectText
	ExpectBinary
)

type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	Expect Expect
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Doer performs one logical request. Failures are always *errs.RequestError.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

type Options struct {
	APIRoot   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient replaces the underlying client, mostly for tests.
	HTTPClient *http.Client
}

type Client struct {
	rc  *resty.Client
	log *slog.Logger
}

func New(opts Options, log *slog.Logger) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}

	rc.SetBaseURL(opts.APIRoot).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetLogger(restyLogger{log: log}).
		SetRetryCount(0)

	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{
		rc:  rc,
		log: log,
	}
}

func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	requestID := uuid.NewString()

	r := c.rc.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", requestID).
		SetHeader("Accept", accept(req.Expect))

	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	c.log.Debug("sending request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("requestID", requestID),
	)

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, &errs.RequestError{
			Method:  req.Method,
			Path:    req.Path,
			Message: err.Error(),
			Payload: map[string]any{"error": err.Error()},
			Err:     err,
		}
	}

	res := &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		reqErr := &errs.RequestError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: res.StatusCode,
			Payload:    errorPayload(res),
		}

		c.log.Debug("request failed",
			slog.String("path", req.Path),
			slog.Int("status", res.StatusCode),
			slog.String("requestID", requestID),
		)

		return nil, reqErr
	}

	if req.Expect == ExpectJSON && !json.Valid(res.Body) {
		return nil, &errs.RequestError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: res.StatusCode,
			Message:    "malformed response body",
			Payload:    map[string]any{"error": "malformed response body"},
		}
	}

	return res, nil
}

// Decode unmarshals a JSON response body into out.
func (r *Response) Decode(out any) error {
	return json.Unmarshal(r.Body, out)
}

// JSON issues a JSON request through d and decodes the body into out when out
// is not nil.
func JSON(ctx context.Context, d Doer, method, path string, body, out any) error {
	res, err := d.Do(ctx, Request{
		Method: method,
		Path:   path,
		Body:   body,
		Expect: ExpectJSON,
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := res.Decode(out); err != nil {
		return &errs.RequestError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Message:    fmt.Sprintf("malformed response body: %v", err),
			Payload:    map[string]any{"error": "malformed response body"},
			Err:        err,
		}
	}

	return nil
}

func errorPayload(res *Response) map[string]any {
	var body any
	if err := json.Unmarshal(res.Body, &body); err == nil && body != nil {
		if payload, ok := body.(map[string]any); ok {
			return payload
		}
		// JSON that is not an object is kept as is under "body".
		return map[string]any{"body": body}
	}

	msg := strings.TrimSpace(string(res.Body))
	if msg == "" || strings.HasPrefix(strings.ToLower(msg), "<") {
		msg = http.StatusText(res.StatusCode)
	}

	return map[string]any{"error": msg}
}

func accept(e Expect) string {
	switch e {
	case ExpectText:
		return "text/plain, */*"
	case ExpectBinary:
		return "application/octet-stream, */*"
	}
	return "application/json"
}

type restyLogger struct {
	log *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}
