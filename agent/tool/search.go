package tool

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidFilter = errors.New("invalid search filter")

const (
	CompareOver        = "over"
	CompareUnder       = "under"
	CompareBetween     = "between"
	CompareExact       = "exact"
	CompareApproximate = "approximate"
)

const (
	defaultSearchLimit = 10
	previewLength      = 200
	exactTolerance     = 0.01
	approximateSpread  = 0.10
)

// SearchFilter narrows the corpus. Empty fields do not filter. Comparison
// reads Amount, except between which reads MinAmount and MaxAmount.
type SearchFilter struct {
	Keyword    string
	Type       string
	Comparison string
	Amount     *float64
	MinAmount  *float64
	MaxAmount  *float64
	Limit      int
}

type SearchMatch struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Amount     *float64 `json:"amount,omitempty"`
	Preview    string   `json:"preview"`
}

// Statistics summarizes the corpus, or one document type of it.
type Statistics struct {
	TotalDocuments       int            `json:"total_documents"`
	DocumentsWithAmounts int            `json:"documents_with_amounts"`
	DocumentTypes        map[string]int `json:"document_types"`
	TotalAmount          float64        `json:"total_amount"`
	AverageAmount        float64        `json:"average_amount"`
	MinAmount            float64        `json:"min_amount"`
	MaxAmount            float64        `json:"max_amount"`
}

func (f SearchFilter) validate() error {
	switch f.Comparison {
	case "":
		if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
			return fmt.Errorf("%w: min_amount is above max_amount", ErrInvalidFilter)
		}
	case CompareOver, CompareUnder, CompareExact, CompareApproximate:
		if f.Amount == nil {
			return fmt.Errorf("%w: %s needs amount", ErrInvalidFilter, f.Comparison)
		}
	case CompareBetween:
		if f.MinAmount == nil || f.MaxAmount == nil {
			return fmt.Errorf("%w: between needs min_amount and max_amount", ErrInvalidFilter)
		}
		if *f.MinAmount > *f.MaxAmount {
			return fmt.Errorf("%w: min_amount is above max_amount", ErrInvalidFilter)
		}
	default:
		return fmt.Errorf("%w: unknown comparison %q", ErrInvalidFilter, f.Comparison)
	}
	return nil
}

// needsAmount reports whether documents without an amount are excluded.
func (f SearchFilter) needsAmount() bool {
	return f.Comparison != "" || f.MinAmount != nil || f.MaxAmount != nil
}

func (f SearchFilter) matchAmount(v float64) bool {
	switch f.Comparison {
	case CompareOver:
		return v >= *f.Amount
	case CompareUnder:
		return v <= *f.Amount
	case CompareExact:
		return math.Abs(v-*f.Amount) <= exactTolerance
	case CompareApproximate:
		return math.Abs(v-*f.Amount) <= math.Abs(*f.Amount)*approximateSpread
	}
	if f.MinAmount != nil && v < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && v > *f.MaxAmount {
		return false
	}
	return true
}

// Filter applies f in keyword rank order, or corpus order without a keyword.
func (c *Corpus) Filter(f SearchFilter) ([]SearchMatch, error) {
	f.Comparison = strings.ToLower(strings.TrimSpace(f.Comparison))
	if err := f.validate(); err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	candidates := c.docs
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		candidates = c.Search(kw, 0)
	}

	out := []SearchMatch{}
	for _, doc := range candidates {
		if f.Type != "" && !strings.EqualFold(doc.Type, strings.TrimSpace(f.Type)) {
			continue
		}
		amount, ok := doc.Amount()
		if f.needsAmount() && (!ok || !f.matchAmount(amount)) {
			continue
		}
		m := SearchMatch{DocumentID: doc.ID, Title: doc.Title, Type: doc.Type, Preview: preview(doc.Content)}
		if ok {
			m.Amount = &amount
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Statistics counts documents per type and aggregates their amounts. An
// empty docType covers the whole corpus.
func (c *Corpus) Statistics(docType string) Statistics {
	docType = strings.TrimSpace(docType)
	stats := Statistics{DocumentTypes: map[string]int{}}
	for _, doc := range c.docs {
		if docType != "" && !strings.EqualFold(doc.Type, docType) {
			continue
		}
		stats.TotalDocuments++
		stats.DocumentTypes[doc.Type]++

		amount, ok := doc.Amount()
		if !ok {
			continue
		}
		if stats.DocumentsWithAmounts == 0 || amount < stats.MinAmount {
			stats.MinAmount = amount
		}
		if stats.DocumentsWithAmounts == 0 || amount > stats.MaxAmount {
			stats.MaxAmount = amount
		}
		stats.DocumentsWithAmounts++
		stats.TotalAmount += amount
	}
	if stats.DocumentsWithAmounts > 0 {
		stats.AverageAmount = stats.TotalAmount / float64(stats.DocumentsWithAmounts)
	}
	return stats
}

func preview(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}
