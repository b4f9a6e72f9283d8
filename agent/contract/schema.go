package contract

// Schema describes the JSON object a generation must return.
type Schema struct {
	Name        string
	Description string
	JSON        map[string]any
}

// Wire shapes decoded from generator output. Timestamps and source filtering
// are applied by the agents, never trusted from the model.

type IntentOutput struct {
	IntentType string  `json:"intent_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type ToolPlanOutput struct {
	ToolCalls []ToolRequest `json:"tool_calls"`
	Reasoning string        `json:"reasoning"`
}

type DocumentSelectionOutput struct {
	DocumentIDs []string `json:"document_ids"`
	Reasoning   string   `json:"reasoning"`
}

type AnswerOutput struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

type SummarizationOutput struct {
	Summary    string   `json:"summary"`
	KeyPoints  []string `json:"key_points"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

type CalculationDraftOutput struct {
	Expression  string  `json:"expression"`
	Explanation string  `json:"explanation"`
	Units       string  `json:"units"`
	Confidence  float64 `json:"confidence"`
}

type MemoryUpdateOutput struct {
	Summary     string   `json:"summary"`
	DocumentIDs []string `json:"document_ids"`
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numberProp(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1, "description": desc}
}

func stringList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	SchemaIntent = Schema{
		Name:        "user_intent",
		Description: "Classified intent of the user's latest message.",
		JSON: object(map[string]any{
			"intent_type": map[string]any{
				"type": "string",
				"enum": []string{string(IntentQA), string(IntentSummarization), string(IntentCalculation), string(IntentUnknown)},
			},
			"confidence": numberProp("Confidence in the classification, 0 to 1"),
			"reasoning":  stringProp("Short justification"),
		}, "intent_type", "confidence", "reasoning"),
	}

	SchemaToolPlan = Schema{
		Name:        "tool_plan",
		Description: "Tool calls to run before answering.",
		JSON: object(map[string]any{
			"tool_calls": map[string]any{
				"type": "array",
				"items": object(map[string]any{
					"tool": stringProp("Tool name"),
					"args": map[string]any{"type": "object", "description": "Tool arguments"},
				}, "tool", "args"),
			},
			"reasoning": stringProp("Why these tools"),
		}, "tool_calls", "reasoning"),
	}

	SchemaDocumentSelection = Schema{
		Name:        "document_selection",
		Description: "Documents that must be read before computing.",
		JSON: object(map[string]any{
			"document_ids": stringList("Document ids or lookup queries"),
			"reasoning":    stringProp("Why these documents"),
		}, "document_ids", "reasoning"),
	}

	SchemaAnswer = Schema{
		Name:        "answer_response",
		Description: "Answer to a question about the documents.",
		JSON: object(map[string]any{
			"answer":     stringProp("The answer"),
			"sources":    stringList("Document ids the answer relies on"),
			"confidence": numberProp("Confidence in the answer, 0 to 1"),
		}, "answer", "sources", "confidence"),
	}

	SchemaSummarization = Schema{
		Name:        "summarization_response",
		Description: "Summary of one or more documents.",
		JSON: object(map[string]any{
			"summary":    stringProp("The generated summary"),
			"key_points": stringList("Key points extracted"),
			"sources":    stringList("Document ids summarized"),
			"confidence": numberProp("Confidence in the summary, 0 to 1"),
		}, "summary", "key_points", "sources", "confidence"),
	}

	SchemaCalculationDraft = Schema{
		Name:        "calculation_draft",
		Description: "Arithmetic expression derived from the request and document contents.",
		JSON: object(map[string]any{
			"expression":  stringProp("Arithmetic expression using only numbers, + - * / % ^ and parentheses"),
			"explanation": stringProp("Step-by-step explanation"),
			"units":       stringProp("Units of the result, empty if none"),
			"confidence":  numberProp("Confidence in the expression, 0 to 1"),
		}, "expression", "explanation", "units", "confidence"),
	}

	SchemaMemoryUpdate = Schema{
		Name:        "memory_update",
		Description: "Rolling conversation summary.",
		JSON: object(map[string]any{
			"summary":      stringProp("Summary of the conversation up to this point"),
			"document_ids": stringList("Document ids relevant to the user's last message"),
		}, "summary", "document_ids"),
	}
)
