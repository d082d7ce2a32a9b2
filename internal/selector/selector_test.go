package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

func deps(ids ...taskid.Ref) []taskid.Ref {
	if ids == nil {
		return []taskid.Ref{}
	}
	return ids
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestNext_EmptyGraph(t *testing.T) {
	_, ok := Next(graph.Snapshot{})
	assert.False(t, ok)
}

func TestNext_NothingReady(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusInProgress, Dependencies: deps()},
		{ID: 2, Status: graph.StatusPending, Dependencies: deps("1")},
		{ID: 3, Status: graph.StatusPending, Dependencies: deps("40")},
	}}
	_, ok := Next(snap)
	assert.False(t, ok)
}

func TestNext_OnlyReadyCandidate(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusDone, Dependencies: deps()},
		{ID: 2, Status: graph.StatusPending, Dependencies: deps("1")},
		{ID: 3, Status: graph.StatusPending, Dependencies: deps("2")},
	}}
	c, ok := Next(snap)
	require.True(t, ok)
	assert.Equal(t, "2", c.ID)
	assert.Equal(t, graph.PriorityMedium, c.Priority)
}

func TestEligible_Ranking(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusDone, Dependencies: deps()},
		{ID: 2, Status: graph.StatusPending, Priority: graph.PriorityLow, Dependencies: deps()},
		{ID: 3, Status: graph.StatusPending, Priority: graph.PriorityHigh, Dependencies: deps("1")},
		{ID: 4, Status: graph.StatusPending, Priority: graph.PriorityHigh, Dependencies: deps()},
		{ID: 5, Status: graph.StatusPending, Dependencies: deps()},
		{ID: 6, Status: graph.StatusPending, Priority: graph.PriorityHigh, Dependencies: deps()},
	}}

	assert.Equal(t, []string{"4", "6", "3", "5", "2"}, ids(Eligible(snap)))
}

func TestNext_HighPriorityFirstThenUnblocked(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusPending, Priority: graph.PriorityHigh, Dependencies: deps()},
		{ID: 2, Status: graph.StatusPending, Priority: graph.PriorityMedium, Dependencies: deps("1")},
		{ID: 3, Status: graph.StatusPending, Priority: graph.PriorityHigh, Dependencies: deps()},
	}}

	c, ok := Next(snap)
	require.True(t, ok)
	assert.Equal(t, "1", c.ID)
	assert.Equal(t, []string{"1", "3"}, ids(Eligible(snap)))

	require.NoError(t, snap.SetStatus(taskid.Task(1), graph.StatusDone))
	assert.Equal(t, []string{"3", "2"}, ids(Eligible(snap)))

	c, ok = Next(snap)
	require.True(t, ok)
	assert.Equal(t, "3", c.ID)
}

func TestEligible_Subtasks(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusDone, Dependencies: deps()},
		{ID: 2, Status: graph.StatusInProgress, Priority: graph.PriorityHigh, Dependencies: deps("1"), Subtasks: []graph.Subtask{
			{ID: 1, Status: graph.StatusDone, Dependencies: deps()},
			{ID: 2, Status: graph.StatusPending, Dependencies: deps("1")},
			{ID: 3, Status: graph.StatusPending, Dependencies: deps("2")},
			{ID: 4, Status: graph.StatusPending, Priority: graph.PriorityLow, Dependencies: deps()},
		}},
		{ID: 3, Status: graph.StatusPending, Dependencies: deps()},
	}}

	got := Eligible(snap)
	assert.Equal(t, []string{"2.2", "3", "2.4"}, ids(got))
	assert.Equal(t, graph.PriorityHigh, got[0].Priority)
	assert.Equal(t, 1, got[0].Dependencies)
}

func TestEligible_ParentBlocksSubtasks(t *testing.T) {
	for _, st := range []graph.Status{graph.StatusDone, graph.StatusCancelled, graph.StatusDeferred} {
		t.Run(string(st), func(t *testing.T) {
			snap := graph.Snapshot{Tasks: []graph.Task{
				{ID: 1, Status: st, Dependencies: deps(), Subtasks: []graph.Subtask{
					{ID: 1, Status: graph.StatusPending, Dependencies: deps()},
				}},
			}}
			assert.Empty(t, Eligible(snap))
		})
	}
}

func TestEligible_ParentDependenciesGateSubtasks(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusPending, Dependencies: deps()},
		{ID: 2, Status: graph.StatusPending, Dependencies: deps("1"), Subtasks: []graph.Subtask{
			{ID: 1, Status: graph.StatusPending, Dependencies: deps()},
		}},
	}}
	assert.Equal(t, []string{"1"}, ids(Eligible(snap)))
}

func TestEligible_ParentWithOpenSubtasksNotOffered(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusPending, Dependencies: deps(), Subtasks: []graph.Subtask{
			{ID: 1, Status: graph.StatusDone, Dependencies: deps()},
			{ID: 2, Status: graph.StatusInProgress, Dependencies: deps()},
		}},
	}}
	assert.Empty(t, Eligible(snap))

	snap.Tasks[0].Subtasks[1].Status = graph.StatusCancelled
	assert.Equal(t, []string{"1"}, ids(Eligible(snap)))
}

func TestEligible_CrossTaskSubtaskDependency(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		{ID: 1, Status: graph.StatusPending, Dependencies: deps(), Subtasks: []graph.Subtask{
			{ID: 1, Status: graph.StatusPending, Dependencies: deps()},
		}},
		{ID: 2, Status: graph.StatusPending, Dependencies: deps("1.1")},
	}}
	assert.Equal(t, []string{"1.1"}, ids(Eligible(snap)))

	snap.Tasks[0].Subtasks[0].Status = graph.StatusDone
	assert.Equal(t, []string{"1", "2"}, ids(Eligible(snap)))
}
