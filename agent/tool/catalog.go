package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

const (
	ToolDocumentLookup     = "document.lookup"
	ToolDocumentSearch     = "document.search"
	ToolDocumentStatistics = "document.statistics"
	ToolMathEvaluate       = "math.evaluate"
)

var (
	documentLookupInfo = &schema.ToolInfo{
		Name: ToolDocumentLookup,
		Desc: "Read one document by id, or the best keyword match when no id matches.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"document_id": {Type: schema.String, Desc: "Document id (e.g. INV-001) or search keywords", Required: true},
		}),
	}
	documentSearchInfo = &schema.ToolInfo{
		Name: ToolDocumentSearch,
		Desc: "Find documents by keyword, type or amount. Returns ids, titles, amounts and short previews.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword":    {Type: schema.String, Desc: "Keywords matched against titles, content and metadata"},
			"type":       {Type: schema.String, Desc: "Document type such as invoice, contract or claim"},
			"comparison": {Type: schema.String, Desc: "Amount comparison", Enum: []string{CompareOver, CompareUnder, CompareBetween, CompareExact, CompareApproximate}},
			"amount":     {Type: schema.Number, Desc: "Amount for over, under, exact and approximate"},
			"min_amount": {Type: schema.Number, Desc: "Lower bound for between, or a range on its own"},
			"max_amount": {Type: schema.Number, Desc: "Upper bound for between, or a range on its own"},
			"limit":      {Type: schema.Integer, Desc: "Maximum number of matches, default 10"},
		}),
	}
	documentStatisticsInfo = &schema.ToolInfo{
		Name: ToolDocumentStatistics,
		Desc: "Count documents by type and report total, average, minimum and maximum amounts.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"type": {Type: schema.String, Desc: "Restrict the statistics to one document type"},
		}),
	}
	mathEvaluateInfo = &schema.ToolInfo{
		Name: ToolMathEvaluate,
		Desc: "Evaluate an arithmetic expression.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {Type: schema.String, Desc: "Expression using numbers, + - * / % ^ and parentheses", Required: true},
		}),
	}
)

// InfosForAgent returns the tool subset bound to an agent.
func InfosForAgent(agentType contractx.AgentType) []*schema.ToolInfo {
	switch agentType {
	case contractx.AgentTypeQA, contractx.AgentTypeSummarization:
		return []*schema.ToolInfo{documentLookupInfo, documentSearchInfo, documentStatisticsInfo}
	case contractx.AgentTypeCalculation:
		return []*schema.ToolInfo{documentLookupInfo, mathEvaluateInfo}
	default:
		return nil
	}
}

// Bound reports whether agentType may invoke tool.
func Bound(agentType contractx.AgentType, tool string) bool {
	for _, info := range InfosForAgent(agentType) {
		if info.Name == tool {
			return true
		}
	}
	return false
}
