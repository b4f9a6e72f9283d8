package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

const defaultAuditLimit = 1000

var ErrUnknownTool = errors.New("unknown tool")

type LookupOutput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Text       string `json:"text"`
}

type SearchOutput struct {
	Matches []SearchMatch `json:"matches"`
}

type MathEvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Registry is the named set of tools agents may invoke. Every invocation is
// appended to the in-memory audit trail and forwarded to the optional sink.
type Registry struct {
	corpus *Corpus
	sink   AuditSink
	now    func() time.Time
	limit  int

	mu      sync.Mutex
	entries []AuditEntry
}

type Option func(*Registry)

func WithAuditSink(sink AuditSink) Option {
	return func(r *Registry) {
		r.sink = sink
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithAuditLimit bounds the in-memory trail; the oldest entries are dropped.
func WithAuditLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.limit = n
		}
	}
}

func NewRegistry(corpus *Corpus, opts ...Option) *Registry {
	if corpus == nil {
		corpus, _ = NewCorpus()
	}
	r := &Registry{
		corpus: corpus,
		now:    time.Now,
		limit:  defaultAuditLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) Corpus() *Corpus {
	return r.corpus
}

// LookupDocument resolves an id or free-text query to a document.
func (r *Registry) LookupDocument(ctx context.Context, idOrQuery string) (Document, error) {
	args := map[string]any{"document_id": idOrQuery}
	if err := ctx.Err(); err != nil {
		r.record(ctx, ToolDocumentLookup, args, nil, err)
		return Document{}, err
	}
	doc, err := r.corpus.Find(idOrQuery)
	if err != nil {
		r.record(ctx, ToolDocumentLookup, args, nil, err)
		return Document{}, err
	}
	r.record(ctx, ToolDocumentLookup, args, map[string]any{"document_id": doc.ID, "title": doc.Title}, nil)
	return doc, nil
}

// SearchDocuments returns the documents matching filter.
func (r *Registry) SearchDocuments(ctx context.Context, filter SearchFilter) ([]SearchMatch, error) {
	args := filter.auditArgs()
	if err := ctx.Err(); err != nil {
		r.record(ctx, ToolDocumentSearch, args, nil, err)
		return nil, err
	}
	matches, err := r.corpus.Filter(filter)
	if err != nil {
		r.record(ctx, ToolDocumentSearch, args, nil, err)
		return nil, err
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.DocumentID)
	}
	r.record(ctx, ToolDocumentSearch, args, map[string]any{"document_ids": ids}, nil)
	return matches, nil
}

// Statistics aggregates the corpus, optionally for one document type.
func (r *Registry) Statistics(ctx context.Context, docType string) (Statistics, error) {
	args := map[string]any{}
	if docType != "" {
		args["type"] = docType
	}
	if err := ctx.Err(); err != nil {
		r.record(ctx, ToolDocumentStatistics, args, nil, err)
		return Statistics{}, err
	}
	stats := r.corpus.Statistics(docType)
	r.record(ctx, ToolDocumentStatistics, args, stats, nil)
	return stats, nil
}

// Calculate evaluates expression; it is the only source of numeric results.
func (r *Registry) Calculate(ctx context.Context, expression string) (float64, error) {
	args := map[string]any{"expression": expression}
	if err := ctx.Err(); err != nil {
		r.record(ctx, ToolMathEvaluate, args, nil, err)
		return 0, err
	}
	result, err := Evaluate(expression)
	if err != nil {
		r.record(ctx, ToolMathEvaluate, args, nil, err)
		return 0, err
	}
	r.record(ctx, ToolMathEvaluate, args, result, nil)
	return result, nil
}

// Execute dispatches a planned request. Tool failures come back inside the
// result, never as an error.
func (r *Registry) Execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	switch req.Tool {
	case ToolDocumentLookup:
		query, err := stringArg(req.Args, "document_id", "id", "query")
		if err != nil {
			r.record(ctx, req.Tool, req.Args, nil, err)
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		doc, err := r.LookupDocument(ctx, query)
		if err != nil {
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		return contractx.ToolResult{Tool: req.Tool, Result: LookupOutput{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Type:       doc.Type,
			Text:       doc.Render(),
		}}
	case ToolDocumentSearch:
		filter, err := searchFilterArgs(req.Args)
		if err != nil {
			r.record(ctx, req.Tool, req.Args, nil, err)
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		matches, err := r.SearchDocuments(ctx, filter)
		if err != nil {
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		return contractx.ToolResult{Tool: req.Tool, Result: SearchOutput{Matches: matches}}
	case ToolDocumentStatistics:
		docType, err := optionalStringArg(req.Args, "type")
		if err != nil {
			r.record(ctx, req.Tool, req.Args, nil, err)
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		stats, err := r.Statistics(ctx, docType)
		if err != nil {
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		return contractx.ToolResult{Tool: req.Tool, Result: stats}
	case ToolMathEvaluate:
		expression, err := stringArg(req.Args, "expression")
		if err != nil {
			r.record(ctx, req.Tool, req.Args, nil, err)
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		result, err := r.Calculate(ctx, expression)
		if err != nil {
			return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		return contractx.ToolResult{Tool: req.Tool, Result: MathEvaluateOutput{
			Expression: strings.TrimSpace(expression),
			Result:     result,
		}}
	default:
		err := fmt.Errorf("%w: %s", ErrUnknownTool, req.Tool)
		r.record(ctx, req.Tool, req.Args, nil, err)
		return contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
	}
}

// Audit returns a copy of the in-memory trail, oldest first.
func (r *Registry) Audit() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.entries...)
}

func (r *Registry) SessionAudit(sessionID string) []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AuditEntry
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) record(ctx context.Context, tool string, args map[string]any, result any, err error) {
	entry := AuditEntry{
		SessionID: SessionFromContext(ctx),
		Tool:      tool,
		Args:      args,
		Result:    result,
		Timestamp: r.now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	if over := len(r.entries) - r.limit; over > 0 {
		r.entries = append([]AuditEntry(nil), r.entries[over:]...)
	}
	r.mu.Unlock()

	log.Debug().
		Str("session_id", entry.SessionID).
		Str("tool", tool).
		Interface("args", args).
		Str("error", entry.Error).
		Msg("tool invoked")

	if r.sink != nil {
		if sinkErr := r.sink.Append(entry); sinkErr != nil {
			log.Warn().Err(sinkErr).Str("tool", tool).Msg("tool audit sink append failed")
		}
	}
}

func stringArg(args map[string]any, keys ...string) (string, error) {
	for _, key := range keys {
		raw, ok := args[key]
		if !ok {
			continue
		}
		v, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%s must be a string", key)
		}
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%s is empty", key)
		}
		return v, nil
	}
	return "", fmt.Errorf("%s is required", keys[0])
}

func optionalStringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(v), nil
}

// numberArg reads a JSON number, or a numeric string such as "1,500".
func numberArg(args map[string]any, key string) (*float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(n), ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", key)
		}
		v = f
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &v, nil
}

func searchFilterArgs(args map[string]any) (SearchFilter, error) {
	var f SearchFilter
	var err error
	if f.Keyword, err = optionalStringArg(args, "keyword"); err != nil {
		return f, err
	}
	if f.Keyword == "" {
		if f.Keyword, err = optionalStringArg(args, "query"); err != nil {
			return f, err
		}
	}
	if f.Type, err = optionalStringArg(args, "type"); err != nil {
		return f, err
	}
	if f.Comparison, err = optionalStringArg(args, "comparison"); err != nil {
		return f, err
	}
	if f.Amount, err = numberArg(args, "amount"); err != nil {
		return f, err
	}
	if f.MinAmount, err = numberArg(args, "min_amount"); err != nil {
		return f, err
	}
	if f.MaxAmount, err = numberArg(args, "max_amount"); err != nil {
		return f, err
	}
	limit, err := numberArg(args, "limit")
	if err != nil {
		return f, err
	}
	if limit != nil {
		f.Limit = int(*limit)
	}
	return f, nil
}

func (f SearchFilter) auditArgs() map[string]any {
	args := map[string]any{}
	if f.Keyword != "" {
		args["keyword"] = f.Keyword
	}
	if f.Type != "" {
		args["type"] = f.Type
	}
	if f.Comparison != "" {
		args["comparison"] = f.Comparison
	}
	if f.Amount != nil {
		args["amount"] = *f.Amount
	}
	if f.MinAmount != nil {
		args["min_amount"] = *f.MinAmount
	}
	if f.MaxAmount != nil {
		args["max_amount"] = *f.MaxAmount
	}
	if f.Limit > 0 {
		args["limit"] = f.Limit
	}
	return args
}
