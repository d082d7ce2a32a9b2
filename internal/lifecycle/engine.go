package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

// Engine applies status transitions to a store. Marking a task done forces
// its unfinished subtasks to done in the same commit; finishing the last
// subtask only suggests completing the parent.
type Engine struct {
	store *graph.Store
	sink  Sink
	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides the change-group id generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New returns an engine over store. A nil sink discards events.
func New(store *graph.Store, sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = Discard
	}
	e := &Engine{
		store: store,
		sink:  sink,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Result lists what one SetStatus call committed.
type Result struct {
	ChangeID   string     `json:"change_id"`
	Address    string     `json:"address"`
	Status     string     `json:"status"`
	Changes    []Change   `json:"changes"`
	Advisories []Advisory `json:"advisories"`
}

// SetStatus moves the node at addr to status. Any recognized status may move
// to any other. Setting the current status again records no direct change,
// though a done parent still pulls unfinished subtasks to done.
func (e *Engine) SetStatus(addr, status string) (*Result, error) {
	st, err := graph.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	a, err := taskid.Parse(addr)
	if err != nil {
		return nil, err
	}

	res := &Result{ChangeID: e.newID(), Address: a.String(), Status: string(st)}
	at := e.now()

	err = e.store.Update(func(snap *graph.Snapshot) error {
		res.Changes, res.Advisories = nil, nil

		prev, err := snap.StatusOf(a)
		if err != nil {
			return err
		}
		if prev != st {
			if err := snap.SetStatus(a, st); err != nil {
				return err
			}
			res.Changes = append(res.Changes, Change{
				ChangeID: res.ChangeID,
				Address:  a.String(),
				From:     prev,
				To:       st,
				Cause:    CauseDirect,
				At:       at,
			})
		}

		parent, _ := snap.Task(a.Parent)
		if !a.IsSubtask() {
			if st.IsDone() {
				for i := range parent.Subtasks {
					sub := &parent.Subtasks[i]
					if sub.Status.IsDone() {
						continue
					}
					res.Changes = append(res.Changes, Change{
						ChangeID: res.ChangeID,
						Address:  taskid.Subtask(parent.ID, sub.ID).String(),
						From:     sub.Status,
						To:       st,
						Cause:    CauseCascade,
						CausedBy: a.String(),
						At:       at,
					})
					sub.Status = st
				}
			}
			return nil
		}

		if st.IsDone() && prev != st && !parent.Status.IsDone() && allDone(parent.Subtasks) {
			res.Advisories = append(res.Advisories, Advisory{
				ChangeID: res.ChangeID,
				Kind:     AdvisoryParentMayComplete,
				ParentID: parent.ID,
				Trigger:  a.String(),
				At:       at,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range res.Changes {
		e.sink.Record(c)
	}
	for _, adv := range res.Advisories {
		e.sink.Advise(adv)
	}
	return res, nil
}

func allDone(subs []graph.Subtask) bool {
	for _, s := range subs {
		if !s.Status.IsDone() {
			return false
		}
	}
	return true
}

// Request is one item of a bulk status update.
type Request struct {
	Address string `json:"address"`
	Status  string `json:"status"`
}

// BulkItem is the outcome of one Request.
type BulkItem struct {
	Request Request `json:"request"`
	Result  *Result `json:"result,omitempty"`
	Err     error   `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// BulkReport lists outcomes in input order.
type BulkReport struct {
	Items []BulkItem `json:"items"`
}

// Succeeded returns the items that committed.
func (r BulkReport) Succeeded() []BulkItem {
	var out []BulkItem
	for _, it := range r.Items {
		if it.Err == nil {
			out = append(out, it)
		}
	}
	return out
}

// Failed returns the items that were rejected.
func (r BulkReport) Failed() []BulkItem {
	var out []BulkItem
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// BulkSetStatus applies each request independently. A failed item leaves
// the store as it was before that item; earlier successes stay committed.
func (e *Engine) BulkSetStatus(reqs []Request) BulkReport {
	report := BulkReport{Items: make([]BulkItem, 0, len(reqs))}
	for _, r := range reqs {
		res, err := e.SetStatus(r.Address, r.Status)
		item := BulkItem{Request: r, Result: res, Err: err}
		if err != nil {
			item.Error = err.Error()
		}
		report.Items = append(report.Items, item)
	}
	return report
}
