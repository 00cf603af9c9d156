package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is one completed print-shop transaction.
type Order struct {
	Date        time.Time
	OrderID     string
	UserName    string
	Pages       int
	TotalAmount decimal.Decimal
	ShopEarning decimal.Decimal
	AppEarning  decimal.Decimal
}

// Dataset is the ordered, read-only collection of orders loaded at startup.
type Dataset struct {
	Orders []Order
	Source string
}

// Len returns the number of orders in the dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Orders)
}

// Document is the indexed text form of a single order.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// SearchResult represents a matching document with a relevance score.
type SearchResult struct {
	Document Document
	Score    float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Retriever returns the records most similar to a question, most relevant first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]SearchResult, error)
}

// Generator is a blocking call to a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
