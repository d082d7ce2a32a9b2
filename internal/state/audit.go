package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joshharrison/taskloom/internal/lifecycle"
)

const DefaultAuditFile = "audit.log"

// AuditEntry is one line of the audit log.
type AuditEntry struct {
	Type     string    `json:"type"` // "change" or "advisory"
	Tag      string    `json:"tag"`
	ChangeID string    `json:"change_id"`
	At       time.Time `json:"at"`
	Address  string    `json:"address,omitempty"`
	From     string    `json:"from,omitempty"`
	To       string    `json:"to,omitempty"`
	Cause    string    `json:"cause,omitempty"`
	CausedBy string    `json:"caused_by,omitempty"`
	Kind     string    `json:"kind,omitempty"`
	ParentID int       `json:"parent_id,omitempty"`
}

// AuditLog appends lifecycle events to a JSON Lines file. It implements
// lifecycle.Sink; write failures are logged and kept for Err.
type AuditLog struct {
	mu   sync.Mutex
	f    *os.File
	tag  string
	err  error
	path string
}

// OpenAuditLog opens (or creates) the log at path for appending.
func OpenAuditLog(path, tag string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &AuditLog{f: f, tag: tag, path: path}, nil
}

func (a *AuditLog) Record(c lifecycle.Change) {
	a.write(AuditEntry{
		Type:     "change",
		Tag:      a.tag,
		ChangeID: c.ChangeID,
		At:       c.At,
		Address:  c.Address,
		From:     string(c.From),
		To:       string(c.To),
		Cause:    string(c.Cause),
		CausedBy: c.CausedBy,
	})
}

func (a *AuditLog) Advise(adv lifecycle.Advisory) {
	a.write(AuditEntry{
		Type:     "advisory",
		Tag:      a.tag,
		ChangeID: adv.ChangeID,
		At:       adv.At,
		Address:  adv.Trigger,
		Kind:     string(adv.Kind),
		ParentID: adv.ParentID,
	})
}

func (a *AuditLog) write(e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(e)
	if err == nil {
		_, err = a.f.Write(append(data, '\n'))
	}
	if err != nil {
		log.Printf("warning: audit log %s: %v", a.path, err)
		if a.err == nil {
			a.err = err
		}
	}
}

// Err returns the first write error, if any.
func (a *AuditLog) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

// ReadAudit returns the entries in the log, oldest first. Lines that are not
// valid JSON are skipped and counted. A missing log has no entries.
func ReadAudit(path string) ([]AuditEntry, int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []AuditEntry
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			skipped++
			continue
		}
		r := gjson.Parse(line)
		at, _ := time.Parse(time.RFC3339Nano, r.Get("at").String())
		entries = append(entries, AuditEntry{
			Type:     r.Get("type").String(),
			Tag:      r.Get("tag").String(),
			ChangeID: r.Get("change_id").String(),
			At:       at,
			Address:  r.Get("address").String(),
			From:     r.Get("from").String(),
			To:       r.Get("to").String(),
			Cause:    r.Get("cause").String(),
			CausedBy: r.Get("caused_by").String(),
			Kind:     r.Get("kind").String(),
			ParentID: int(r.Get("parent_id").Int()),
		})
	}
	if err := scanner.Err(); err != nil {
		return entries, skipped, fmt.Errorf("read audit log: %w", err)
	}
	return entries, skipped, nil
}
