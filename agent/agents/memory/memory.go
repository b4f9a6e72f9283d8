package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// Catalog tells the updater which cited ids name real documents.
type Catalog interface {
	Known(id string) bool
}

type Config struct {
	HistoryWindow   int `envconfig:"HISTORY_WINDOW" default:"6"`
	MaxSummaryChars int `envconfig:"MAX_SUMMARY_CHARS" default:"1200"`
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	if c.MaxSummaryChars <= 0 {
		c.MaxSummaryChars = 1200
	}
	return c
}

// Updater folds the finished turn into the rolling conversation summary.
type Updater struct {
	gen     contractx.Generator
	prompts *promptx.Set
	catalog Catalog
	cfg     Config
}

func New(gen contractx.Generator, prompts *promptx.Set, catalog Catalog, cfg Config) *Updater {
	if prompts == nil {
		prompts = promptx.LoadSet()
	}
	return &Updater{gen: gen, prompts: prompts, catalog: catalog, cfg: cfg.withDefaults()}
}

func (u *Updater) Update(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
	if st == nil {
		return statex.Delta{}, fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
	}

	payload := map[string]any{
		"previous_summary": st.ConversationSummary,
		"recent_messages":  st.RecentMessages(u.cfg.HistoryWindow),
		"latest_response":  latestResponse(st.CurrentResponse),
		"active_documents": st.ActiveDocuments,
		"tools_used":       st.ToolsUsed,
	}
	msgs, err := u.prompts.Memory(ctx, payload)
	if err != nil {
		return statex.Delta{}, err
	}

	var out contractx.MemoryUpdateOutput
	if err := u.gen.Generate(ctx, contractx.GenerationRequest{Schema: contractx.SchemaMemoryUpdate, Messages: msgs}, &out); err != nil {
		return statex.Delta{}, err
	}
	summary := capSummary(strings.TrimSpace(out.Summary), u.cfg.MaxSummaryChars)
	if summary == "" {
		return statex.Delta{}, fmt.Errorf("%w: summary is empty", contractx.ErrSchemaViolation)
	}

	docs := append([]string{}, st.CurrentResponse.Sources()...)
	for _, id := range out.DocumentIDs {
		id = strings.TrimSpace(id)
		if id != "" && u.catalog != nil && u.catalog.Known(id) {
			docs = append(docs, id)
		}
	}

	return statex.Delta{
		ConversationSummary: &summary,
		ActiveDocuments:     statex.UnionDocuments(st.ActiveDocuments, docs),
	}, nil
}

func latestResponse(resp *contractx.Response) map[string]any {
	if resp == nil {
		return nil
	}
	return map[string]any{
		"kind":       resp.Kind,
		"text":       resp.Text(),
		"sources":    resp.Sources(),
		"confidence": resp.Confidence(),
	}
}

// capSummary trims s to at most limit bytes, cutting at a word boundary.
func capSummary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	head := s[:cut]
	if i := strings.LastIndexFunc(head, unicode.IsSpace); i > 0 {
		head = head[:i]
	}
	return strings.TrimRightFunc(head, unicode.IsSpace)
}
