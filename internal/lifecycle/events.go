package lifecycle

import (
	"sync"
	"time"

	"github.com/joshharrison/taskloom/internal/graph"
)

// Cause says whether a change was requested or forced by a parent.
type Cause string

const (
	CauseDirect  Cause = "direct"
	CauseCascade Cause = "cascade"
)

// Change is one committed status transition.
type Change struct {
	ChangeID string       `json:"change_id"`
	Address  string       `json:"address"`
	From     graph.Status `json:"from"`
	To       graph.Status `json:"to"`
	Cause    Cause        `json:"cause"`
	CausedBy string       `json:"caused_by,omitempty"`
	At       time.Time    `json:"at"`
}

// AdvisoryKind names a suggested follow-up.
type AdvisoryKind string

const AdvisoryParentMayComplete AdvisoryKind = "parent-may-complete"

// Advisory suggests an action without applying it.
type Advisory struct {
	ChangeID string       `json:"change_id"`
	Kind     AdvisoryKind `json:"kind"`
	ParentID int          `json:"parent_id"`
	Trigger  string       `json:"trigger"`
	At       time.Time    `json:"at"`
}

// Sink receives every committed change and advisory.
type Sink interface {
	Record(Change)
	Advise(Advisory)
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(Change)   {}
func (discard) Advise(Advisory) {}

// Recorder keeps events in memory.
type Recorder struct {
	mu         sync.Mutex
	changes    []Change
	advisories []Advisory
}

func (r *Recorder) Record(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *Recorder) Advise(a Advisory) {
	r.mu.Lock()
	r.advisories = append(r.advisories, a)
	r.mu.Unlock()
}

// Changes returns a copy of the recorded changes.
func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

// Advisories returns a copy of the recorded advisories.
func (r *Recorder) Advisories() []Advisory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Advisory(nil), r.advisories...)
}

// MultiSink fans events out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Record(c Change) {
	for _, s := range m {
		s.Record(c)
	}
}

func (m MultiSink) Advise(a Advisory) {
	for _, s := range m {
		s.Advise(a)
	}
}
