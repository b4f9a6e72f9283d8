package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Document-Assistant/agent/nodes"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	obsx "github.com/tanpawarit/Chative-Document-Assistant/pkg/observability"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

const (
	EventTurnCompleted = "turn.completed"

	publishTimeout = 5 * time.Second
)

// Publisher delivers turn events. Failures never fail the turn.
type Publisher interface {
	Publish(ctx context.Context, payload any, dedupID string) (string, error)
}

type TurnCompletedEvent struct {
	ID              string               `json:"id"`
	Type            string               `json:"type"`
	SessionID       string               `json:"session_id"`
	UserID          string               `json:"user_id,omitempty"`
	Turn            int                  `json:"turn"`
	Intent          contractx.IntentType `json:"intent"`
	Confidence      float64              `json:"confidence"`
	Degraded        bool                 `json:"degraded"`
	ToolsUsed       []string             `json:"tools_used"`
	ActiveDocuments []string             `json:"active_documents"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

// TurnResult is what the caller sees of a completed turn.
type TurnResult struct {
	SessionID       string              `json:"session_id"`
	Reply           string              `json:"reply"`
	Response        *contractx.Response `json:"response"`
	Intent          contractx.Intent    `json:"intent"`
	ToolsUsed       []string            `json:"tools_used"`
	ActionsTaken    []string            `json:"actions_taken"`
	Summary         string              `json:"summary"`
	ActiveDocuments []string            `json:"active_documents"`
	Turn            int                 `json:"turn"`
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithRecorder(r obsx.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

type Orchestrator struct {
	store  statex.Store
	agents nodex.Agents

	graphRunner compose.Runnable[*statex.TurnState, *statex.TurnState]

	locks     *xsync.MapOf[string, *sessionLock]
	recorder  obsx.Recorder
	publisher Publisher

	now func() time.Time
}

func New(store statex.Store, agents nodex.Agents, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if agents.Classifier == nil {
		return nil, errors.New("intent classifier is required")
	}
	if agents.Memory == nil {
		return nil, errors.New("memory updater is required")
	}
	for _, node := range nodex.AgentNodes {
		if _, ok := agents.Responder(node); !ok {
			return nil, fmt.Errorf("response agent for %s is required", node)
		}
	}

	o := &Orchestrator{
		store:    store,
		agents:   agents,
		locks:    xsync.NewMapOf[string, *sessionLock](),
		recorder: obsx.Noop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// ProcessTurn runs one conversational turn. Turns on the same session are
// serialized; a failed or cancelled turn leaves the stored checkpoint as it was.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, userID, userInput string) (*TurnResult, error) {
	start := time.Now()
	req, err := nodex.ValidateRequest(nodex.TurnRequest{SessionID: sessionID, UserID: userID, UserInput: userInput})
	if err != nil {
		return nil, err
	}

	ctx, span := o.recorder.StartTurnSpan(ctx, req.SessionID)
	result, err := o.processTurn(ctx, req)
	o.recorder.EndSpan(span, err)

	intent := ""
	if result != nil {
		intent = string(result.Intent.Type)
	}
	o.recorder.RecordTurn(ctx, intent, time.Since(start), err)

	if err != nil {
		var te *contractx.TurnError
		errors.As(err, &te)
		ev := log.Error().Err(err).Str("session_id", req.SessionID).Int64("duration_ms", time.Since(start).Milliseconds())
		if te != nil {
			ev = ev.Str("kind", string(te.Kind)).Str("node", te.Node)
		}
		ev.Msg("turn failed")
		return nil, err
	}

	log.Info().
		Str("session_id", req.SessionID).
		Str("intent", intent).
		Int("turn", result.Turn).
		Strs("tools_used", result.ToolsUsed).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("turn completed")
	return result, nil
}

func (o *Orchestrator) processTurn(ctx context.Context, req nodex.TurnRequest) (*TurnResult, error) {
	unlock, err := o.lockSession(ctx, req.SessionID)
	if err != nil {
		return nil, contractx.NewTurnError(contractx.KindCheckpoint, "acquire_session", err)
	}
	defer unlock()

	log.Debug().Str("session_id", req.SessionID).Msg("turn started")

	st, err := nodex.LoadOrCreateState(ctx, o.store, req, o.now())
	o.recorder.RecordCheckpoint(ctx, "load", err)
	if err != nil {
		return nil, err
	}

	runCtx, rt := withRunTrace(ctx)
	out, err := o.graphRunner.Invoke(runCtx, st)
	if err != nil {
		if rt.err != nil {
			err = rt.err
		}
		return nil, contractx.NewTurnError(contractx.KindGeneration, "", err)
	}

	reply, err := nodex.FinalizeReply(out)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, contractx.NewTurnError(contractx.KindCheckpoint, "save_checkpoint", fmt.Errorf("turn cancelled before save: %w", err))
	}

	out.Turn++
	err = nodex.ValidateAndSaveState(ctx, out, o.store, o.now())
	o.recorder.RecordCheckpoint(ctx, "save", err)
	if err != nil {
		return nil, err
	}

	o.publishTurn(ctx, out)
	return toResult(out, reply), nil
}

// lockSession blocks until the caller owns the session or ctx is done.
func (o *Orchestrator) lockSession(ctx context.Context, sessionID string) (func(), error) {
	lock, _ := o.locks.Compute(sessionID, func(l *sessionLock, loaded bool) (*sessionLock, bool) {
		if !loaded {
			l = &sessionLock{ch: make(chan struct{}, 1)}
		}
		l.refs++
		return l, false
	})
	release := func() {
		o.locks.Compute(sessionID, func(l *sessionLock, loaded bool) (*sessionLock, bool) {
			if !loaded {
				return l, true
			}
			l.refs--
			return l, l.refs <= 0
		})
	}

	select {
	case lock.ch <- struct{}{}:
		return func() {
			<-lock.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) publishTurn(ctx context.Context, st *statex.TurnState) {
	if o.publisher == nil {
		return
	}

	event := TurnCompletedEvent{
		ID:              uuid.NewString(),
		Type:            EventTurnCompleted,
		SessionID:       st.SessionID,
		UserID:          st.UserID,
		Turn:            st.Turn,
		Confidence:      st.CurrentResponse.Confidence(),
		Degraded:        st.CurrentResponse != nil && st.CurrentResponse.Degraded,
		ToolsUsed:       append([]string{}, st.ToolsUsed...),
		ActiveDocuments: append([]string{}, st.ActiveDocuments...),
		OccurredAt:      o.now().UTC(),
	}
	if st.Intent != nil {
		event.Intent = st.Intent.Type
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	messageID, err := o.publisher.Publish(pubCtx, event, event.ID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", st.SessionID).Msg("turn event publish failed")
		return
	}
	log.Debug().Str("session_id", st.SessionID).Str("message_id", messageID).Msg("turn event published")
}

// Session returns the stored checkpoint of a session.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (*statex.TurnState, error) {
	return o.store.Load(ctx, sessionID)
}

// Forget deletes a session checkpoint once no turn holds the session.
func (o *Orchestrator) Forget(ctx context.Context, sessionID string) error {
	unlock, err := o.lockSession(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return o.store.Delete(ctx, sessionID)
}

func toResult(st *statex.TurnState, reply string) *TurnResult {
	res := &TurnResult{
		SessionID:       st.SessionID,
		Reply:           reply,
		Response:        st.CurrentResponse,
		ToolsUsed:       append([]string{}, st.ToolsUsed...),
		ActionsTaken:    append([]string{}, st.ActionsTaken...),
		Summary:         st.ConversationSummary,
		ActiveDocuments: append([]string{}, st.ActiveDocuments...),
		Turn:            st.Turn,
	}
	if st.Intent != nil {
		res.Intent = *st.Intent
	}
	return res
}
