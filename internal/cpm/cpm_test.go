package cpm

import (
	"testing"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

func task(id int, status graph.Status, deps ...taskid.Ref) graph.Task {
	if deps == nil {
		deps = []taskid.Ref{}
	}
	return graph.Task{ID: id, Title: taskid.Format(id), Status: status, Dependencies: deps}
}

func analyze(t *testing.T, tasks ...graph.Task) *CPMResult {
	t.Helper()
	snap := graph.Snapshot{Tasks: tasks}
	result, err := Analyze(&snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestAnalyze_LinearChain(t *testing.T) {
	// 1 <- 2 <- 3
	result := analyze(t,
		task(1, graph.StatusPending),
		task(2, graph.StatusPending, "1"),
		task(3, graph.StatusPending, "2"),
	)

	if result.TotalDuration != 3 {
		t.Errorf("expected total duration 3, got %d", result.TotalDuration)
	}
	if len(result.CriticalPath) != 3 {
		t.Errorf("expected 3 tasks on critical path, got %d: %v", len(result.CriticalPath), result.CriticalPath)
	}
	if len(result.Waves) != 3 {
		t.Errorf("expected 3 waves, got %d", len(result.Waves))
	}

	assertSchedule(t, result.Tasks[taskid.Task(1)], 0, 1, 0, 1, 0, true)
	assertSchedule(t, result.Tasks[taskid.Task(2)], 1, 2, 1, 2, 0, true)
	assertSchedule(t, result.Tasks[taskid.Task(3)], 2, 3, 2, 3, 0, true)
}

func TestAnalyze_DiamondDAG(t *testing.T) {
	// 4 needs 2 and 3, which both need 1
	result := analyze(t,
		task(1, graph.StatusPending),
		task(2, graph.StatusPending, "1"),
		task(3, graph.StatusPending, "1"),
		task(4, graph.StatusPending, "2", "3"),
	)

	if result.TotalDuration != 3 {
		t.Errorf("expected total duration 3, got %d", result.TotalDuration)
	}
	if len(result.Waves) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(result.Waves))
	}
	if got := result.Waves[1].Addresses; len(got) != 2 {
		t.Errorf("expected 2 tasks in wave 1, got %v", got)
	}
	if !result.Tasks[taskid.Task(1)].IsCritical || !result.Tasks[taskid.Task(4)].IsCritical {
		t.Error("expected tasks 1 and 4 to be critical")
	}
}

func TestAnalyze_SlackOffCriticalPath(t *testing.T) {
	// 1 <- 2 <- 3 <- 5 and 1 <- 4 <- 5: task 4 can slip one wave
	result := analyze(t,
		task(1, graph.StatusPending),
		task(2, graph.StatusPending, "1"),
		task(3, graph.StatusPending, "2"),
		task(4, graph.StatusPending, "1"),
		task(5, graph.StatusPending, "3", "4"),
	)

	if result.TotalDuration != 4 {
		t.Errorf("expected total duration 4, got %d", result.TotalDuration)
	}
	assertSchedule(t, result.Tasks[taskid.Task(4)], 1, 2, 2, 3, 1, false)

	want := []taskid.Address{taskid.Task(1), taskid.Task(2), taskid.Task(3), taskid.Task(5)}
	if len(result.CriticalPath) != len(want) {
		t.Fatalf("expected critical path %v, got %v", want, result.CriticalPath)
	}
	for i := range want {
		if result.CriticalPath[i] != want[i] {
			t.Errorf("critical path[%d]: expected %s, got %s", i, want[i], result.CriticalPath[i])
		}
	}

	// critical nodes sort first within a wave
	if w := result.Waves[1].Addresses; len(w) != 2 || w[0] != taskid.Task(2) {
		t.Errorf("expected wave 1 to start with task 2, got %v", w)
	}
}

func TestAnalyze_SkipsFinishedWork(t *testing.T) {
	result := analyze(t,
		task(1, graph.StatusDone),
		task(2, graph.StatusCancelled),
		task(3, graph.StatusPending, "1", "2"),
		task(4, graph.StatusInProgress, "3"),
	)

	if len(result.TopoOrder) != 2 {
		t.Fatalf("expected 2 open tasks, got %v", result.TopoOrder)
	}
	if _, ok := result.Tasks[taskid.Task(1)]; ok {
		t.Error("done task should not be scheduled")
	}
	assertSchedule(t, result.Tasks[taskid.Task(3)], 0, 1, 0, 1, 0, true)
	assertSchedule(t, result.Tasks[taskid.Task(4)], 1, 2, 1, 2, 0, true)
}

func TestAnalyze_Subtasks(t *testing.T) {
	parent := task(1, graph.StatusInProgress)
	parent.Subtasks = []graph.Subtask{
		{ID: 1, Status: graph.StatusPending, Dependencies: []taskid.Ref{}},
		{ID: 2, Status: graph.StatusPending, Dependencies: []taskid.Ref{"1"}},
	}
	result := analyze(t, parent, task(2, graph.StatusPending, "1.2"))

	ts := result.Tasks[taskid.Task(2)]
	if ts == nil || ts.ES != 2 {
		t.Errorf("expected task 2 to start after 1.2, got %+v", ts)
	}
	if result.Tasks[taskid.Subtask(1, 2)].Wave != 1 {
		t.Errorf("expected 1.2 in wave 1, got %d", result.Tasks[taskid.Subtask(1, 2)].Wave)
	}
}

func TestAnalyze_ParallelIndependent(t *testing.T) {
	result := analyze(t,
		task(1, graph.StatusPending),
		task(2, graph.StatusPending),
		task(3, graph.StatusPending),
	)

	if len(result.Waves) != 1 {
		t.Errorf("expected 1 wave, got %d", len(result.Waves))
	}
	if len(result.Waves[0].Addresses) != 3 {
		t.Errorf("expected 3 tasks in wave 0, got %d", len(result.Waves[0].Addresses))
	}
	if result.TotalDuration != 1 {
		t.Errorf("expected total duration 1, got %d", result.TotalDuration)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	snap := graph.Snapshot{Tasks: []graph.Task{
		task(1, graph.StatusPending, "2"),
		task(2, graph.StatusPending, "1"),
	}}
	if _, err := Analyze(&snap); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestAnalyze_Empty(t *testing.T) {
	result := analyze(t)
	if result.TotalDuration != 0 || len(result.Waves) != 0 {
		t.Errorf("expected empty plan, got %+v", result)
	}
}

func assertSchedule(t *testing.T, ts *TaskSchedule, es, ef, ls, lf, slack int, critical bool) {
	t.Helper()
	if ts == nil {
		t.Fatal("missing schedule")
	}
	if ts.ES != es {
		t.Errorf("task %s: expected ES=%d, got %d", ts.Address, es, ts.ES)
	}
	if ts.EF != ef {
		t.Errorf("task %s: expected EF=%d, got %d", ts.Address, ef, ts.EF)
	}
	if ts.LS != ls {
		t.Errorf("task %s: expected LS=%d, got %d", ts.Address, ls, ts.LS)
	}
	if ts.LF != lf {
		t.Errorf("task %s: expected LF=%d, got %d", ts.Address, lf, ts.LF)
	}
	if ts.Slack != slack {
		t.Errorf("task %s: expected slack=%d, got %d", ts.Address, slack, ts.Slack)
	}
	if ts.IsCritical != critical {
		t.Errorf("task %s: expected critical=%v, got %v", ts.Address, critical, ts.IsCritical)
	}
}
