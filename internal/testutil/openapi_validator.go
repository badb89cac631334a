package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/onestop-itsm/api/openapi"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// apiPrefix marks the routes the OpenAPI document describes. Probes,
// /version and the docs page are outside it.
const apiPrefix = "/api/v1/"

const maxReported = 300

// OpenAPIValidator checks live API traffic against the embedded OpenAPI
// document.
type OpenAPIValidator struct {
	router routers.Router
}

// LoadOpenAPIValidator parses the embedded document and builds a router for
// it. Use in TestMain, where no *testing.T exists yet.
func LoadOpenAPIValidator() (*OpenAPIValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapi.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}

	// NewRouter validates the document before indexing its paths.
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &OpenAPIValidator{router: router}, nil
}

// NewOpenAPIValidator is LoadOpenAPIValidator for use inside a test.
func NewOpenAPIValidator(t *testing.T) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator()
	if err != nil {
		t.Fatalf("load openapi validator: %v", err)
	}
	return v
}

// Check reports, as test errors, every way the exchange deviates from the
// document: unknown route, bad path or query parameters, undocumented
// status, or a body that does not match the response schema. Request bodies
// are not checked so tests can send deliberately invalid payloads. The
// response body is buffered and restored for the caller.
func (v *OpenAPIValidator) Check(t *testing.T, req *http.Request, resp *http.Response) {
	t.Helper()

	if !strings.HasPrefix(req.URL.Path, apiPrefix) {
		return
	}
	where := req.Method + " " + req.URL.Path

	route, params, err := v.router.FindRoute(req)
	if err != nil {
		t.Errorf("openapi: %s is not documented: %v", where, err)
		return
	}

	in := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			ExcludeRequestBody: true,
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	ctx := context.Background()
	if err := openapi3filter.ValidateRequest(ctx, in); err != nil {
		t.Errorf("openapi: request %s: %s", where, clip(err.Error()))
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		t.Errorf("openapi: read response of %s: %v", where, err)
		return
	}

	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: in,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(ctx, out); err != nil {
		t.Errorf("openapi: response %s (%d): %s\nbody: %s",
			where, resp.StatusCode, clip(err.Error()), clip(string(bytes.TrimSpace(body))))
	}
}

func clip(s string) string {
	if len(s) > maxReported {
		return s[:maxReported] + "..."
	}
	return s
}
