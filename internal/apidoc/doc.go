// Package apidoc embeds the gateway's own OpenAPI description, validates it
// at startup, and serves it at /openapi.json.
package apidoc

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawDocument []byte

// Document is the parsed and validated gateway API description. The JSON
// rendering is produced once at load time; the handler only writes bytes.
type Document struct {
	doc        *openapi3.T
	rendered   []byte
	operations []string
}

// Load parses and validates the embedded document. A failure here is a
// build defect, so callers treat the error as fatal.
func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(rawDocument)
	if err != nil {
		return nil, fmt.Errorf("apidoc: parsing embedded document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("apidoc: validating embedded document: %w", err)
	}

	rendered, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("apidoc: rendering embedded document: %w", err)
	}

	var operations []string
	for _, pathItem := range doc.Paths.Map() {
		for _, op := range pathItem.Operations() {
			if op.OperationID != "" {
				operations = append(operations, op.OperationID)
			}
		}
	}
	sort.Strings(operations)

	return &Document{doc: doc, rendered: rendered, operations: operations}, nil
}

// Loaded reports whether the document parsed and validated. The readiness
// endpoint calls this.
func (d *Document) Loaded() bool {
	return d != nil && d.doc != nil && len(d.rendered) > 0
}

// Version returns the document's info.version.
func (d *Document) Version() string {
	if d == nil || d.doc == nil || d.doc.Info == nil {
		return ""
	}
	return d.doc.Info.Version
}

// Operations returns every operationId in the document, sorted.
func (d *Document) Operations() []string {
	out := make([]string, len(d.operations))
	copy(out, d.operations)
	return out
}

// HasOperation reports whether the document defines operationID.
func (d *Document) HasOperation(operationID string) bool {
	i := sort.SearchStrings(d.operations, operationID)
	return i < len(d.operations) && d.operations[i] == operationID
}

// Handler serves the document as JSON.
func (d *Document) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(d.rendered)
	})
}
