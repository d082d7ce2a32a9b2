package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joshharrison/taskloom/internal/config"
	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/lifecycle"
	"github.com/joshharrison/taskloom/internal/reporter"
	"github.com/joshharrison/taskloom/internal/state"
	"github.com/joshharrison/taskloom/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagJSON    bool
	flagTag     string
	flagFile    string
	flagAudit   string
	flagNoColor bool

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskloom",
		Short: "Track tasks, subtasks and their dependencies",
		Long: `Taskloom keeps a tagged task list in a JSON file, validates the dependency
graph on every change, cascades status from parents to subtasks, and picks
the next ready task.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cfg = loaded
			ui.SetColor(cfg.Color && !flagNoColor && os.Getenv("NO_COLOR") == "")
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagTag, "tag", "", "Tag to operate on (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagFile, "file", "", "Task file path (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagAudit, "audit", "", "Audit log path (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(addSubtaskCmd())
	rootCmd.AddCommand(setStatusCmd())
	rootCmd.AddCommand(addDepCmd())
	rootCmd.AddCommand(removeDepCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// workspace is one tag of the task file, loaded into a store. Writers hold
// the file lock until close.
type workspace struct {
	file  *state.File
	lock  *state.Lock
	store *graph.Store
}

// openWorkspace loads the configured tag. With write set the task file is
// locked first so the load-mutate-save cycle cannot interleave with another
// process.
func openWorkspace(write, warn bool) (*workspace, error) {
	ws := &workspace{file: state.NewFile(cfg.DataFile)}
	if write {
		ws.lock = state.NewLock(cfg.DataFile)
		if err := ws.lock.Acquire(); err != nil {
			return nil, err
		}
	}

	snap, err := ws.file.Load(cfg.Tag)
	if err != nil {
		ws.close()
		return nil, fmt.Errorf("load %s: %w", cfg.DataFile, err)
	}
	if warn {
		warnInvalid(&snap)
	}
	ws.store = graph.NewStore(snap)
	return ws, nil
}

func warnInvalid(snap *graph.Snapshot) {
	for _, f := range graph.CheckIntegrity(snap) {
		log.Printf("warning: %s", f)
	}
	for _, c := range graph.CheckCycles(snap) {
		log.Printf("warning: dependency cycle %s", graph.FormatPath(c))
	}
}

func (ws *workspace) close() {
	if ws.lock == nil {
		return
	}
	if err := ws.lock.Release(); err != nil {
		log.Printf("warning: release lock: %v", err)
	}
}

// save writes the committed snapshot back under the tag it was loaded from.
func (ws *workspace) save() error {
	snap := ws.store.Snapshot()
	now := time.Now().UTC()
	if snap.Metadata.Created.IsZero() {
		snap.Metadata.Created = now
	}
	snap.Metadata.Updated = now
	if err := ws.file.Save(ws.store.Tag(), snap); err != nil {
		return fmt.Errorf("save %s: %w", cfg.DataFile, err)
	}
	return nil
}

// engine returns a lifecycle engine whose events are buffered until flush,
// so the audit log only sees changes that were saved.
func (ws *workspace) engine() (*lifecycle.Engine, *lifecycle.Recorder) {
	rec := &lifecycle.Recorder{}
	return lifecycle.New(ws.store, rec), rec
}

// flush appends recorded events to the audit log. Audit failures are
// warnings; the task file is already saved.
func flush(rec *lifecycle.Recorder) {
	if cfg.AuditLog == "" {
		return
	}
	audit, err := state.OpenAuditLog(cfg.AuditLog, cfg.Tag)
	if err != nil {
		log.Printf("warning: %v", err)
		return
	}
	defer audit.Close()

	for _, c := range rec.Changes() {
		audit.Record(c)
	}
	for _, a := range rec.Advisories() {
		audit.Advise(a)
	}
	if err := audit.Err(); err != nil {
		log.Printf("warning: audit log incomplete: %v", err)
	}
}

func outputJSON(v interface{}) error {
	data, err := reporter.JSON(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
