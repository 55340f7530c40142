// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// scriptedRunner serves a fixed graph shape: sections by sectionId,
// ordered edge lists by node identity, and answered flags by
// "sourceId|questionId". The container-mediated and direct answered
// checks consult separate maps. Everything else goes through the exec
// hook.
type scriptedRunner struct {
	sections       map[string]*graph.Node
	edges          map[string][]graph.Record
	answered       map[string]bool
	answeredDirect map[string]bool
	exec           func(query string, params map[string]any) ([]graph.Record, error)
	executed       []string
}

func (s *scriptedRunner) Run(_ context.Context, query string, params map[string]any) ([]graph.Record, error) {
	switch {
	case strings.Contains(query, ":Section {sectionId: $sid"):
		sid, _ := params["sid"].(string)
		node, ok := s.sections[sid]
		if !ok {
			return nil, nil
		}
		return []graph.Record{{Keys: []string{"s"}, Values: []any{node}}}, nil

	case strings.Contains(query, "type(e) IN"):
		nid, _ := params["nid"].(string)
		return s.edges[nid], nil

	case strings.Contains(query, "AS answered"):
		key := fmt.Sprintf("%v|%v", params["srcId"], params["qid"])
		flags := s.answered
		if !strings.Contains(query, "OPTIONAL MATCH") {
			flags = s.answeredDirect
		}
		return []graph.Record{{
			Keys:   []string{"answered"},
			Values: []any{flags[key]},
		}}, nil

	default:
		s.executed = append(s.executed, query)
		if s.exec != nil {
			return s.exec(query, params)
		}
		return nil, nil
	}
}

func (s *scriptedRunner) RunCapped(ctx context.Context, query string, params map[string]any, _ int) ([]graph.Record, error) {
	return s.Run(ctx, query, params)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(r graph.Runner, config Config) *Engine {
	return New(r, quietLogger(), config)
}

// Fixture builders.

func sectionNode(sid string, extra map[string]any) *graph.Node {
	props := map[string]any{"sectionId": sid}
	for k, v := range extra {
		props[k] = v
	}
	return &graph.Node{ElementID: "s:" + sid, Labels: []string{"Section"}, Props: props}
}

func questionNode(qid string, allowMultiple bool) *graph.Node {
	props := map[string]any{"questionId": qid}
	if allowMultiple {
		props["allowMultiple"] = true
	}
	return &graph.Node{ElementID: "q:" + qid, Labels: []string{"Question"}, Props: props}
}

func actionNode(aid, actionType string, extra map[string]any) *graph.Node {
	props := map[string]any{"actionId": aid, "actionType": actionType}
	for k, v := range extra {
		props[k] = v
	}
	return &graph.Node{ElementID: "a:" + aid, Labels: []string{"Action"}, Props: props}
}

func precedes(id int64, props map[string]any, target *graph.Node) graph.Record {
	return edgeRecordOf("PRECEDES", id, props, target)
}

func triggers(id int64, props map[string]any, target *graph.Node) graph.Record {
	return edgeRecordOf("TRIGGERS", id, props, target)
}

func edgeRecordOf(relType string, id int64, props map[string]any, target *graph.Node) graph.Record {
	if props == nil {
		props = map[string]any{}
	}
	rel := &graph.Relationship{ID: id, Type: relType, Props: props}
	return graph.Record{Keys: []string{"e", "t"}, Values: []any{rel, target}}
}

// S1: one PRECEDES edge to an unanswered question.
func TestWalk_SingleUnansweredQuestion(t *testing.T) {
	s := sectionNode("S", nil)
	q1 := questionNode("Q1", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {precedes(1, nil, q1)},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q1"}, result.Question)
	assert.False(t, result.Completed)
	assert.Equal(t, "S", result.SectionID)
	assert.Empty(t, result.CreatedNodeIDs)
}

// S2: Q1 is answered under the applicant source; the walk recurses past
// it and stops at Q2.
func TestWalk_SkipsAnsweredQuestion(t *testing.T) {
	applicant := &graph.Node{ElementID: "n:app1", Labels: []string{"Applicant"}}
	s := sectionNode("S", map[string]any{"sourceNode": "{{ applicant }}"})
	q1 := questionNode("Q1", false)
	q2 := questionNode("Q2", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity():  {precedes(1, nil, q1)},
			q1.Identity(): {precedes(2, nil, q2)},
		},
		answered: map[string]bool{"n:app1|Q1": true},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S",
		map[string]any{"applicant": applicant})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q2"}, result.Question)
	assert.False(t, result.Completed)
	assert.Equal(t, "n:app1", result.SourceNode)
}

// A container source switches the answered check to the direct variant:
// an older sibling's answer (visible to the mediated check) must not
// satisfy a question being re-asked against a fresh container.
func TestWalk_ContainerSourceChecksDirectOnly(t *testing.T) {
	container := &graph.Node{ElementID: "n:hist2", Labels: []string{"HistoryProperty"}}
	s := sectionNode("S", map[string]any{"sourceNode": "{{ container }}"})
	qStart := questionNode("Q_Start_Date", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {precedes(1, nil, qStart)},
		},
		// The mediated pattern would find a sibling container's answer.
		answered:       map[string]bool{"n:hist2|Q_Start_Date": true},
		answeredDirect: map[string]bool{"n:hist2|Q_Start_Date": false},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S",
		map[string]any{"container": container})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q_Start_Date"}, result.Question)
}

// Once the container itself supplied the answer, the walk recurses past
// the question like any other answered check.
func TestWalk_ContainerSourceSkipsOwnAnswer(t *testing.T) {
	container := &graph.Node{ElementID: "n:hist2", Labels: []string{"HistoryProperty"}}
	s := sectionNode("S", map[string]any{"sourceNode": "{{ container }}"})
	qStart := questionNode("Q_Start_Date", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {precedes(1, nil, qStart)},
		},
		answeredDirect: map[string]bool{"n:hist2|Q_Start_Date": true},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S",
		map[string]any{"container": container})
	require.NoError(t, err)
	assert.Nil(t, result.Question)
	assert.True(t, result.Completed)
}

// S3: two ordered edges with complementary askWhen predicates.
func TestWalk_ConditionalBranch(t *testing.T) {
	s := sectionNode("S", nil)
	q1 := questionNode("Q1", false)
	q2 := questionNode("Q2", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {
				precedes(1, map[string]any{"askWhen": "python: has_coapplicant == 'Yes'"}, q1),
				precedes(2, map[string]any{"askWhen": "python: has_coapplicant == 'No'"}, q2),
			},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S",
		map[string]any{"has_coapplicant": "No"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q2"}, result.Question)
}

// S4: CreateNode action with returnImmediately=false continues to Q3 and
// carries the created ids forward.
func TestWalk_ActionContinuation(t *testing.T) {
	s := sectionNode("S", nil)
	a1 := actionNode("A1", "CreateNode", map[string]any{
		"cypher":            "CREATE (c:AddressHistory) RETURN id(c)",
		"returnImmediately": false,
	})
	q3 := questionNode("Q3", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity():  {triggers(1, nil, a1)},
			a1.Identity(): {precedes(2, nil, q3)},
		},
		exec: func(query string, _ map[string]any) ([]graph.Record, error) {
			return []graph.Record{{Keys: []string{"id"}, Values: []any{int64(42)}}}, nil
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42)}, result.CreatedNodeIDs)
	assert.Equal(t, map[string]any{"questionId": "Q3"}, result.Question)
	assert.False(t, result.Completed)
}

// S5: a repeatable question loops while its edge predicate holds, then
// the walk falls through to the next edge.
func TestWalk_AllowMultipleLoop(t *testing.T) {
	s := sectionNode("S", nil)
	qAddr := questionNode("Q_Addr", true)
	qNext := questionNode("Q_Next", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {
				precedes(1, map[string]any{"askWhen": "python: address_count < 3"}, qAddr),
				precedes(2, nil, qNext),
			},
		},
		// Even with an answer on record, allowMultiple questions stop
		// the walk while their predicate holds.
		answered: map[string]bool{},
	}
	eng := newTestEngine(runner, Config{})

	result, err := eng.Walk(context.Background(), "S", map[string]any{"address_count": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q_Addr"}, result.Question)

	result, err = eng.Walk(context.Background(), "S", map[string]any{"address_count": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q_Next"}, result.Question)
}

// S6: a TRIGGERS edge to a CompleteSection action finishes the section
// with exactly one side-effect execution.
func TestWalk_CompleteSection(t *testing.T) {
	s := sectionNode("S", nil)
	done := actionNode("ACT_COMPLETE", "CompleteSection", map[string]any{
		"cypher": "MATCH (s:Section {sectionId: 'S'}) SET s.completed = true",
	})
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {triggers(1, nil, done)},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Nil(t, result.Question)
	assert.True(t, result.Completed)
	assert.Len(t, runner.executed, 1)
}

func TestWalk_GotoSection(t *testing.T) {
	s := sectionNode("S", nil)
	jump := actionNode("A_GOTO", "GotoSection", map[string]any{
		"nextSectionId": "S2",
	})
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {triggers(1, nil, jump)},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Equal(t, "S2", result.NextSectionID)
	assert.Nil(t, result.Question)
	assert.False(t, result.Completed)
}

func TestWalk_EmptySectionCompletes(t *testing.T) {
	s := sectionNode("S", nil)
	runner := &scriptedRunner{sections: map[string]*graph.Node{"S": s}}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Nil(t, result.Question)
}

func TestWalk_SectionNotFound(t *testing.T) {
	runner := &scriptedRunner{sections: map[string]*graph.Node{}}

	_, err := newTestEngine(runner, Config{}).Walk(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrSectionNotFound)
}

func TestWalk_AskWhenErrorIsFatal(t *testing.T) {
	s := sectionNode("S", nil)
	q1 := questionNode("Q1", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {precedes(1, map[string]any{"askWhen": "python: 1 +"}, q1)},
		},
	}

	_, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.ErrorIs(t, err, ErrEvaluation)
}

func TestWalk_NonStringAskWhenIsContractViolation(t *testing.T) {
	s := sectionNode("S", nil)
	q1 := questionNode("Q1", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {precedes(1, map[string]any{"askWhen": int64(5)}, q1)},
		},
	}

	_, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.ErrorIs(t, err, eval.ErrContract)
}

func TestWalk_UnknownActionIsNoOp(t *testing.T) {
	s := sectionNode("S", nil)
	odd := actionNode("A_ODD", "LaunchRocket", nil)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {triggers(1, nil, odd)},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Nil(t, result.Question)
	assert.False(t, result.Completed)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0].Message, "LaunchRocket")
}

func TestWalk_DepthLimit(t *testing.T) {
	applicant := &graph.Node{ElementID: "n:app1", Labels: []string{"Applicant"}}
	s := sectionNode("S", map[string]any{"sourceNode": "{{ applicant }}"})
	q1 := questionNode("Q1", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			// Q1 loops back to itself and is always answered.
			s.Identity():  {precedes(1, nil, q1)},
			q1.Identity(): {precedes(2, nil, q1)},
		},
		answered: map[string]bool{"n:app1|Q1": true},
	}

	_, err := newTestEngine(runner, Config{MaxDepth: 5}).Walk(context.Background(), "S",
		map[string]any{"applicant": applicant})
	require.ErrorIs(t, err, ErrTraversalDepth)
}

// Edge-level declarations shadow section-level ones, and the predicate
// of a later edge sees variables declared while processing earlier ones.
func TestWalk_EdgeVariablesShadow(t *testing.T) {
	s := sectionNode("S", map[string]any{
		"variables": `[{"name": "route", "python": "'east'"}]`,
	})
	q1 := questionNode("Q1", false)
	q2 := questionNode("Q2", false)
	runner := &scriptedRunner{
		sections: map[string]*graph.Node{"S": s},
		edges: map[string][]graph.Record{
			s.Identity(): {
				precedes(1, map[string]any{
					"variables": `[{"name": "route", "python": "'west'"}]`,
					"askWhen":   "python: {{ route }} == 'east'",
				}, q1),
				precedes(2, map[string]any{"askWhen": "python: {{ route }} == 'west'"}, q2),
			},
		},
	}

	result, err := newTestEngine(runner, Config{}).Walk(context.Background(), "S", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"questionId": "Q2"}, result.Question)
}
