package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	nodex "github.com/tanpawarit/Chative-Document-Assistant/agent/nodes"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

type nodeFunc func(ctx context.Context, st *statex.TurnState) (statex.Delta, error)

// runTrace keeps the first node failure of a graph run so the caller sees the
// node's own error rather than the graph engine's wrapping of it.
type runTrace struct {
	err error
}

type runTraceKey struct{}

func withRunTrace(ctx context.Context) (context.Context, *runTrace) {
	rt := &runTrace{}
	return context.WithValue(ctx, runTraceKey{}, rt), rt
}

func runTraceFrom(ctx context.Context) *runTrace {
	rt, _ := ctx.Value(runTraceKey{}).(*runTrace)
	return rt
}

// foldNode adapts a delta-returning node to the graph: it traces the call and
// folds the delta into the running state.
func (o *Orchestrator) foldNode(name string, fn nodeFunc) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, st *statex.TurnState) (*statex.TurnState, error) {
		start := time.Now()
		ctx, span := o.recorder.StartNodeSpan(ctx, name)
		delta, err := fn(ctx, st)
		o.recorder.EndSpan(span, err)
		o.recorder.RecordNode(ctx, name, time.Since(start), err)

		if err != nil {
			if rt := runTraceFrom(ctx); rt != nil && rt.err == nil {
				rt.err = err
			}
			return nil, err
		}
		st.Fold(delta)

		log.Debug().
			Str("session_id", st.SessionID).
			Str("node", name).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("node finished")
		return st, nil
	})
}

func (o *Orchestrator) compileTurnGraph(ctx context.Context) (compose.Runnable[*statex.TurnState, *statex.TurnState], error) {
	graph := compose.NewGraph[*statex.TurnState, *statex.TurnState]()

	nodes := []struct {
		name string
		fn   nodeFunc
	}{
		{nodex.NodeClassifyIntent, func(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
			return nodex.ClassifyIntent(ctx, st, o.agents.Classifier)
		}},
		{nodex.NodeQAAgent, o.dispatch(nodex.NodeQAAgent)},
		{nodex.NodeSummarizationAgent, o.dispatch(nodex.NodeSummarizationAgent)},
		{nodex.NodeCalculationAgent, o.dispatch(nodex.NodeCalculationAgent)},
		{nodex.NodeUpdateMemory, func(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
			return nodex.UpdateMemory(ctx, st, o.agents.Memory)
		}},
	}
	for _, n := range nodes {
		if err := graph.AddLambdaNode(n.name, o.foldNode(n.name, n.fn)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", n.name, err)
		}
	}

	endNodes := make(map[string]bool, len(nodex.AgentNodes))
	for _, name := range nodex.AgentNodes {
		endNodes[name] = true
	}
	branch := compose.NewGraphBranch(func(ctx context.Context, st *statex.TurnState) (string, error) {
		return nodex.RouteStep(st.NextStep), nil
	}, endNodes)

	if err := graph.AddEdge(compose.START, nodex.NodeClassifyIntent); err != nil {
		return nil, fmt.Errorf("add edge start->%s: %w", nodex.NodeClassifyIntent, err)
	}
	if err := graph.AddBranch(nodex.NodeClassifyIntent, branch); err != nil {
		return nil, fmt.Errorf("add route branch: %w", err)
	}
	for _, name := range nodex.AgentNodes {
		if err := graph.AddEdge(name, nodex.NodeUpdateMemory); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", name, nodex.NodeUpdateMemory, err)
		}
	}
	if err := graph.AddEdge(nodex.NodeUpdateMemory, compose.END); err != nil {
		return nil, fmt.Errorf("add edge %s->end: %w", nodex.NodeUpdateMemory, err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.process_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

func (o *Orchestrator) dispatch(node string) nodeFunc {
	return func(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
		return nodex.DispatchAgent(ctx, st, node, o.agents)
	}
}
