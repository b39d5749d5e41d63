// Package remote talks to the product lookup and image analysis services.
package remote

import (
	"context"
	"strings"
)

// Product is the subset of product data the scanner cares about.
type Product struct {
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Brand       string             `json:"brand,omitempty"`
	ServingSize string             `json:"serving_size,omitempty"`
	Nutriments  map[string]float64 `json:"nutriments,omitempty"`
}

// Meaningful reports whether p carries enough data to present: a name or at
// least one nutriment value.
func (p Product) Meaningful() bool {
	return strings.TrimSpace(p.Name) != "" || len(p.Nutriments) > 0
}

// LookupResult is the lookup service's answer for a code. Fallback marks a
// placeholder product synthesised by the service when the code is unknown.
type LookupResult struct {
	OK       bool    `json:"ok"`
	Fallback bool    `json:"fallback"`
	Product  Product `json:"product"`
}

// Confirmed reports whether r identifies a real product.
func (r LookupResult) Confirmed() bool { return r.OK && !r.Fallback && r.Product.Meaningful() }

// Analysis is the image analysis service's answer for an uploaded still.
type Analysis struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Text    string   `json:"text,omitempty"`
	Product *Product `json:"product,omitempty"`
}

// Lookup resolves product codes.
type Lookup interface {
	Lookup(ctx context.Context, code string) (LookupResult, error)
}

// Analyzer accepts a JPEG still for server-side recognition.
type Analyzer interface {
	Analyze(ctx context.Context, jpeg []byte) (Analysis, error)
}
