package orchestratornode

import (
	"context"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// ClassifyIntent records the intent and the routed next step.
func ClassifyIntent(ctx context.Context, st *statex.TurnState, classifier Classifier) (statex.Delta, error) {
	intent, err := classifier.Classify(ctx, st.UserInput, st.Messages)
	if err != nil {
		return statex.Delta{}, contractx.NewTurnError(contractx.KindClassification, NodeClassifyIntent, err)
	}

	return statex.Delta{
		Intent:       &intent,
		NextStep:     statex.StringPtr(Route(intent.Type)),
		ActionsTaken: []string{NodeClassifyIntent},
	}, nil
}
