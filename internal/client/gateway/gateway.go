// Package gateway is the single path by which the client talks to the API.
// It resolves endpoints against a base URL, attaches the bearer credential,
// encodes bodies, classifies failures into typed errors and checks success
// bodies against their schemas before they reach any store.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/MedKeeper/internal/logger"
	"github.com/atinyakov/MedKeeper/internal/models"
	"github.com/atinyakov/MedKeeper/internal/session"
)

// ResponseKind selects how a successful body is treated.
type ResponseKind int

const (
	// ExpectNone ignores the body.
	ExpectNone ResponseKind = iota
	// ExpectJSON decodes and validates the body.
	ExpectJSON
	// ExpectBinary hands the raw bytes to the caller.
	ExpectBinary
)

// maxBody caps buffered response bodies.
const maxBody = 64 << 20

// HeaderRequestID carries the per-call correlation id.
const HeaderRequestID = "X-Request-ID"

// Credentials is the part of the session store the gateway needs.
type Credentials interface {
	Get() (string, bool)
	Clear(reason session.Reason) error
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is nil, a *Multipart, or any value encoded as JSON.
	Body   any
	Expect ResponseKind
}

// Response is a buffered successful response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Stream is a successful response whose body has not been read yet.
// The caller must close Body.
type Stream struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Config configures a Gateway.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Gateway issues authenticated API calls.
type Gateway struct {
	base     *url.URL
	client   *http.Client
	creds    Credentials
	log      *zap.Logger
	validate *validator.Validate
}

// New creates a Gateway. creds may be nil for a gateway that never
// authenticates.
func New(cfg Config, creds Credentials) (*Gateway, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute http(s)", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		base:     base,
		client:   client,
		creds:    creds,
		log:      logger.OrNop(cfg.Logger),
		validate: models.Validator(),
	}, nil
}

// BaseURL returns the configured API location.
func (g *Gateway) BaseURL() string { return g.base.String() }

// Resolve returns the absolute URL for path, keeping any prefix of the base.
func (g *Gateway) Resolve(path string, query url.Values) string {
	u := g.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do performs req and buffers the successful body.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, networkError(fmt.Errorf("read body: %w", err))
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Call performs req and, when out is non-nil, decodes the body into it and
// validates the result. A body that does not fit out is a client error.
func (g *Gateway) Call(ctx context.Context, req Request, out any) error {
	if out != nil && req.Expect == ExpectNone {
		req.Expect = ExpectJSON
	}
	resp, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return shapeError(resp.Status, fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err))
	}
	if err := g.checkShape(out); err != nil {
		return shapeError(resp.Status, fmt.Errorf("validate %s %s: %w", req.Method, req.Path, err))
	}
	return nil
}

// Open performs req and returns the unread body for streaming downloads.
func (g *Gateway) Open(ctx context.Context, req Request) (*Stream, error) {
	if req.Expect == ExpectNone {
		req.Expect = ExpectBinary
	}
	resp, err := g.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Stream{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

// send issues the request and classifies the status. On success the
// response body is left open.
func (g *Gateway) send(ctx context.Context, req Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: msgClient, Err: err}
	}
	target := g.Resolve(req.Path, req.Query)
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: msgClient, Err: err}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	switch req.Expect {
	case ExpectJSON:
		httpReq.Header.Set("Accept", "application/json")
	case ExpectBinary:
		httpReq.Header.Set("Accept", "*/*")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(HeaderRequestID, requestID)
	if g.creds != nil {
		if token, ok := g.creds.Get(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.log.Debug("api call failed",
			zap.String("method", method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, networkError(err)
	}
	g.log.Debug("api call",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	ge := classify(resp.StatusCode, errBody)
	if ge.Kind == KindUnauthorized {
		g.reject(method, req.Path, resp.StatusCode)
	}
	return nil, ge
}

// reject drops the credential after the server refused it.
func (g *Gateway) reject(method, path string, status int) {
	g.log.Warn("credential rejected",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
	)
	if g.creds == nil {
		return
	}
	if err := g.creds.Clear(session.ReasonRejected); err != nil {
		g.log.Error("failed to clear rejected credential", zap.Error(err))
	}
}

func (g *Gateway) checkShape(out any) error {
	rv := reflect.ValueOf(out)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.New("nil target")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return g.validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil
		}
		return g.validate.Var(rv.Interface(), "dive")
	}
	return nil
}
