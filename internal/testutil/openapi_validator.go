// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIValidator validates outbound webhook requests against the
// notification contract.
type OpenAPIValidator struct {
	doc *openapi3.T
}

// NewOpenAPIValidator creates a new OpenAPI validator from a spec file.
// The specPath should be relative to the test working directory or absolute.
func NewOpenAPIValidator(t *testing.T, specPath string) *OpenAPIValidator {
	t.Helper()

	v, err := LoadOpenAPIValidator(specPath)
	if err != nil {
		t.Fatalf("load OpenAPI validator: %v", err)
	}
	return v
}

// LoadOpenAPIValidator loads and validates an OpenAPI spec, returning a validator.
// Use this in TestMain where *testing.T is not available.
func LoadOpenAPIValidator(specPath string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI spec from %s: %w", specPath, err)
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate OpenAPI spec: %w", err)
	}

	return &OpenAPIValidator{doc: doc}, nil
}

// Validate checks a received request body against the request schema of
// the operation at method+path.
func (v *OpenAPIValidator) Validate(method, path string, body []byte) error {
	item := v.doc.Paths.Find(path)
	if item == nil {
		return fmt.Errorf("no path %s in spec", path)
	}
	op := item.GetOperation(method)
	if op == nil {
		return fmt.Errorf("no operation %s %s in spec", method, path)
	}
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return fmt.Errorf("operation %s %s has no request body", method, path)
	}

	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return fmt.Errorf("operation %s %s has no JSON schema", method, path)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	if err := media.Schema.Value.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("schema validation: %w\nbody: %s", err, truncateBody(body))
	}
	return nil
}

// ValidateRequest validates an HTTP request against the OpenAPI spec.
func (v *OpenAPIValidator) ValidateRequest(t *testing.T, req *http.Request, body []byte) {
	t.Helper()

	if ct := req.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("OpenAPI: unexpected content type %q for %s %s", ct, req.Method, req.URL.Path)
	}
	if err := v.Validate(req.Method, req.URL.Path, body); err != nil {
		t.Errorf("OpenAPI request validation failed for %s %s: %v", req.Method, req.URL.Path, err)
	}
}

// truncateBody truncates a body for error reporting.
func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
