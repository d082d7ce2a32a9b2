package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/taskloom/internal/cpm"
	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/lifecycle"
	"github.com/joshharrison/taskloom/internal/selector"
	"github.com/joshharrison/taskloom/internal/state"
	"github.com/joshharrison/taskloom/internal/taskid"
	"github.com/joshharrison/taskloom/internal/ui"
)

func TestMain(m *testing.M) {
	ui.SetColor(false)
	os.Exit(m.Run())
}

func makeSnapshot() graph.Snapshot {
	return graph.Snapshot{
		Tag: "master",
		Tasks: []graph.Task{
			{ID: 1, Title: "Set up repo", Status: graph.StatusDone, Priority: graph.PriorityHigh, Dependencies: []taskid.Ref{}},
			{
				ID: 2, Title: "Write parser", Description: "Parse the config format", Details: "Use a recursive descent parser",
				Status: graph.StatusInProgress, Priority: graph.PriorityMedium, Dependencies: []taskid.Ref{"1"},
				Subtasks: []graph.Subtask{
					{ID: 1, Title: "Lexer", Status: graph.StatusDone, Dependencies: []taskid.Ref{}},
					{ID: 2, Title: "Grammar", Status: graph.StatusPending, Dependencies: []taskid.Ref{"1"}},
				},
			},
			{ID: 3, Title: "Ship it", Status: graph.StatusPending, Priority: graph.PriorityLow, Dependencies: []taskid.Ref{"2", "9"}},
		},
	}
}

func TestPrintList(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	rpt.PrintList(&buf, ListOptions{WithSubtasks: true})
	output := buf.String()

	for _, want := range []string{"[master]", "Set up repo", "Write parser", "2.2", "Grammar", "1✓", "9?"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintList_StatusFilter(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	rpt.PrintList(&buf, ListOptions{Status: graph.StatusPending})
	output := buf.String()

	if !strings.Contains(output, "Ship it") {
		t.Errorf("expected pending task in output, got:\n%s", output)
	}
	if strings.Contains(output, "Set up repo") || strings.Contains(output, "Grammar") {
		t.Errorf("unexpected rows in filtered output:\n%s", output)
	}
}

func TestPrintList_Empty(t *testing.T) {
	rpt := New(graph.Snapshot{})

	var buf bytes.Buffer
	rpt.PrintList(&buf, ListOptions{})
	if !strings.Contains(buf.String(), "no tasks") {
		t.Errorf("expected empty marker, got:\n%s", buf.String())
	}
}

func TestPrintTask_TransitiveDependents(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	if err := rpt.PrintTask(&buf, taskid.Task(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Blocks:    2\n", "Holds up:  2, 3\n"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}

	buf.Reset()
	if err := rpt.PrintTask(&buf, taskid.Task(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "Holds up:") {
		t.Errorf("expected no transitive line when it adds nothing, got:\n%s", buf.String())
	}
}

func TestPrintTask(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	if err := rpt.PrintTask(&buf, taskid.Task(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"Write parser", "in-progress", "Parse the config format", "Details", "Subtasks", "Lexer", "Blocks:    3"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintTask_Subtask(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	if err := rpt.PrintTask(&buf, taskid.Subtask(2, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Parent:    2 Write parser") {
		t.Errorf("expected parent line, got:\n%s", output)
	}
	if !strings.Contains(output, "Depends:   2.1✓") {
		t.Errorf("expected sibling dependency, got:\n%s", output)
	}
}

func TestPrintTask_NotFound(t *testing.T) {
	rpt := New(makeSnapshot())

	var buf bytes.Buffer
	if err := rpt.PrintTask(&buf, taskid.Task(7)); !errors.Is(err, graph.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := rpt.PrintTask(&buf, taskid.Subtask(2, 5)); !errors.Is(err, graph.ErrSubtaskNotFound) {
		t.Errorf("expected subtask not found, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	rpt := New(makeSnapshot())
	summary := rpt.Summary()

	if !strings.Contains(summary, "1 done") {
		t.Errorf("expected '1 done' in summary, got %q", summary)
	}
	if !strings.Contains(summary, "33% of 3 done") {
		t.Errorf("expected progress in summary, got %q", summary)
	}
}

func TestSummary_Empty(t *testing.T) {
	if got := New(graph.Snapshot{}).Summary(); got != "0 tasks" {
		t.Errorf("expected '0 tasks', got %q", got)
	}
}

func TestJSON(t *testing.T) {
	data, err := JSON(makeSnapshot())
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["tasks"]; !ok {
		t.Error("expected tasks key in JSON output")
	}
}

func TestPrintResult(t *testing.T) {
	now := time.Now()
	res := &lifecycle.Result{
		ChangeID: "c1",
		Address:  "2",
		Status:   "done",
		Changes: []lifecycle.Change{
			{Address: "2", From: graph.StatusInProgress, To: graph.StatusDone, Cause: lifecycle.CauseDirect, At: now},
			{Address: "2.2", From: graph.StatusPending, To: graph.StatusDone, Cause: lifecycle.CauseCascade, CausedBy: "2", At: now},
		},
		Advisories: []lifecycle.Advisory{{Kind: lifecycle.AdvisoryParentMayComplete, ParentID: 4, Trigger: "4.1"}},
	}

	var buf bytes.Buffer
	PrintResult(&buf, res)
	output := buf.String()

	for _, want := range []string{"in-progress → done", "cascade from 2", "subtasks of 4 are done"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintResult_NoChange(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, &lifecycle.Result{Address: "3", Status: "pending"})
	if !strings.Contains(buf.String(), "3 already pending") {
		t.Errorf("expected no-op line, got:\n%s", buf.String())
	}
}

func TestPrintBulk(t *testing.T) {
	report := lifecycle.BulkReport{Items: []lifecycle.BulkItem{
		{Request: lifecycle.Request{Address: "1", Status: "done"}, Result: &lifecycle.Result{Address: "1", Status: "done"}},
		{Request: lifecycle.Request{Address: "9", Status: "done"}, Err: &graph.NotFoundError{Address: "9"}},
	}}

	var buf bytes.Buffer
	PrintBulk(&buf, report)
	output := buf.String()

	if !strings.Contains(output, "1 updated, 1 failed") {
		t.Errorf("expected tally, got:\n%s", output)
	}
	if !strings.Contains(output, "✗ 9") {
		t.Errorf("expected failed item, got:\n%s", output)
	}
}

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	PrintValidation(&buf, graph.RepairReport{})
	if !strings.Contains(buf.String(), "valid") {
		t.Errorf("expected clean report, got:\n%s", buf.String())
	}

	buf.Reset()
	PrintValidation(&buf, graph.RepairReport{
		Findings: []graph.Finding{{From: taskid.Task(3), To: "9", Reason: "target does not exist"}},
		Cycles:   [][]taskid.Address{{taskid.Task(1), taskid.Task(2), taskid.Task(1)}},
	})
	output := buf.String()
	for _, want := range []string{"3 depends on 9: target does not exist", "cycle 1 -> 2 -> 1", "not broken automatically"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
}

func TestPrintNext(t *testing.T) {
	var buf bytes.Buffer
	PrintNext(&buf, selector.Eligible(makeSnapshot()))
	output := buf.String()

	if !strings.Contains(output, "2.2") || !strings.Contains(output, "(Write parser)") {
		t.Errorf("expected subtask candidate, got:\n%s", output)
	}

	buf.Reset()
	PrintNext(&buf, nil)
	if !strings.Contains(buf.String(), "no task is ready") {
		t.Errorf("expected empty message, got:\n%s", buf.String())
	}
}

func TestPrintAudit(t *testing.T) {
	entries := []state.AuditEntry{
		{Type: "change", Address: "2.2", From: "pending", To: "done", Cause: "cascade", CausedBy: "2", At: time.Now()},
		{Type: "advisory", Kind: "parent-may-complete", ParentID: 2, Address: "2.2", At: time.Now()},
	}

	var buf bytes.Buffer
	PrintAudit(&buf, entries)
	output := buf.String()
	if !strings.Contains(output, "pending → done (cascade from 2)") {
		t.Errorf("expected change line, got:\n%s", output)
	}
	if !strings.Contains(output, "parent-may-complete 2 after 2.2") {
		t.Errorf("expected advisory line, got:\n%s", output)
	}
}

func analyzed(t *testing.T, snap graph.Snapshot) *cpm.CPMResult {
	t.Helper()
	result, err := cpm.Analyze(&snap)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return result
}

func TestPrintPlan(t *testing.T) {
	snap := makeSnapshot()
	rpt := New(snap)

	var buf bytes.Buffer
	rpt.PrintPlan(&buf, analyzed(t, snap))
	output := buf.String()

	for _, want := range []string{"Taskloom Plan", "Wave 1", "Wave 2", "⚡ critical", "Ship it"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Set up repo") {
		t.Errorf("done task should not be planned:\n%s", output)
	}
}

func TestPrintASCII(t *testing.T) {
	snap := makeSnapshot()
	rpt := New(snap)

	var buf bytes.Buffer
	rpt.PrintASCII(&buf, analyzed(t, snap))
	output := buf.String()

	if !strings.Contains(output, "Task Dependency Graph") {
		t.Errorf("expected header, got:\n%s", output)
	}
	if !strings.Contains(output, "└──→ 3") {
		t.Errorf("expected edge to task 3, got:\n%s", output)
	}
}

func TestPrintDOT(t *testing.T) {
	snap := makeSnapshot()
	rpt := New(snap)

	var buf bytes.Buffer
	rpt.PrintDOT(&buf, analyzed(t, snap))
	output := buf.String()

	if !strings.HasPrefix(output, "digraph taskloom {") {
		t.Errorf("expected digraph header, got:\n%s", output)
	}
	for _, want := range []string{`"1" -> "2";`, `"2.1" -> "2.2";`, "fillcolor=palegreen", "color=red"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if !strings.HasSuffix(output, "}\n") {
		t.Error("expected closing brace")
	}
}
