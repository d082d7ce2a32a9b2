package cpm

import "github.com/joshharrison/taskloom/internal/taskid"

// CPMResult holds the complete critical path analysis.
type CPMResult struct {
	Tasks         map[taskid.Address]*TaskSchedule
	CriticalPath  []taskid.Address // ordered addresses on the critical path
	TotalDuration int
	Waves         []Wave // parallelizable groups
	TopoOrder     []taskid.Address
}

// TaskSchedule holds the scheduling info for a single task or subtask.
type TaskSchedule struct {
	Address    taskid.Address
	ES, EF     int // earliest start/finish
	LS, LF     int // latest start/finish
	Slack      int
	IsCritical bool
	Wave       int // which parallel wave this belongs to
}

// Wave represents a group of nodes that can be worked in parallel.
type Wave struct {
	Index      int
	Addresses  []taskid.Address
	IsCritical bool // true if wave contains critical path nodes
}
