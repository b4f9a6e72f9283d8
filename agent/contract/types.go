package contract

import (
	"strings"
	"time"
)

type IntentType string

const (
	IntentQA            IntentType = "qa"
	IntentSummarization IntentType = "summarization"
	IntentCalculation   IntentType = "calculation"
	IntentUnknown       IntentType = "unknown"
)

// ParseIntentType maps free text onto the closed intent enumeration.
func ParseIntentType(raw string) IntentType {
	switch IntentType(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentQA:
		return IntentQA
	case IntentSummarization:
		return IntentSummarization
	case IntentCalculation:
		return IntentCalculation
	default:
		return IntentUnknown
	}
}

type AgentType string

const (
	AgentTypeClassifier    AgentType = "classifier"
	AgentTypeQA            AgentType = "qa"
	AgentTypeSummarization AgentType = "summarization"
	AgentTypeCalculation   AgentType = "calculation"
	AgentTypeMemory        AgentType = "memory"
)

// Intent is the classifier output for a single turn.
type Intent struct {
	Type       IntentType `json:"intent_type"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the session transcript.
type Message struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Intent  IntentType `json:"intent,omitempty"`
	At      time.Time  `json:"at"`
}

type ResponseKind string

const (
	ResponseAnswer        ResponseKind = "answer"
	ResponseSummarization ResponseKind = "summarization"
	ResponseCalculation   ResponseKind = "calculation"
)

const (
	// DegradedConfidence is the threshold degraded responses stay below. It is
	// also the classifier's default floor.
	DegradedConfidence = 0.3
	// DegradedScore is what agents assign when a tool failure shaped the response.
	DegradedScore = 0.1
)

type AnswerResponse struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Sources    []string  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type SummarizationResponse struct {
	OriginalLength int       `json:"original_length"`
	Summary        string    `json:"summary"`
	KeyPoints      []string  `json:"key_points"`
	Sources        []string  `json:"sources"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

type CalculationResponse struct {
	Expression  string    `json:"expression"`
	Result      float64   `json:"result"`
	Explanation string    `json:"explanation"`
	Units       string    `json:"units,omitempty"`
	Sources     []string  `json:"sources"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// Response is the structured output of whichever response agent ran.
// Exactly one of Answer, Summary, Calculation is set, matching Kind.
// Degraded is set by the agent when a tool failure shaped the response.
type Response struct {
	Kind        ResponseKind           `json:"kind"`
	Degraded    bool                   `json:"degraded,omitempty"`
	Answer      *AnswerResponse        `json:"answer,omitempty"`
	Summary     *SummarizationResponse `json:"summary,omitempty"`
	Calculation *CalculationResponse   `json:"calculation,omitempty"`
}

func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case ResponseAnswer:
		if r.Answer != nil {
			return r.Answer.Answer
		}
	case ResponseSummarization:
		if r.Summary != nil {
			return r.Summary.Summary
		}
	case ResponseCalculation:
		if r.Calculation != nil {
			return r.Calculation.Explanation
		}
	}
	return ""
}

func (r *Response) Sources() []string {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case ResponseAnswer:
		if r.Answer != nil {
			return r.Answer.Sources
		}
	case ResponseSummarization:
		if r.Summary != nil {
			return r.Summary.Sources
		}
	case ResponseCalculation:
		if r.Calculation != nil {
			return r.Calculation.Sources
		}
	}
	return nil
}

func (r *Response) Confidence() float64 {
	if r == nil {
		return 0
	}
	switch r.Kind {
	case ResponseAnswer:
		if r.Answer != nil {
			return r.Answer.Confidence
		}
	case ResponseSummarization:
		if r.Summary != nil {
			return r.Summary.Confidence
		}
	case ResponseCalculation:
		if r.Calculation != nil {
			return r.Calculation.Confidence
		}
	}
	return 0
}

// ClampConfidence forces v into the closed unit interval.
func ClampConfidence(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (r ToolResult) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}
