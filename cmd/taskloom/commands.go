package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/joshharrison/taskloom/internal/config"
	"github.com/joshharrison/taskloom/internal/cpm"
	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/lifecycle"
	"github.com/joshharrison/taskloom/internal/reporter"
	"github.com/joshharrison/taskloom/internal/selector"
	"github.com/joshharrison/taskloom/internal/state"
	"github.com/joshharrison/taskloom/internal/taskid"
	"github.com/joshharrison/taskloom/internal/ui"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the task file and a project config",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(true, false)
			if err != nil {
				return err
			}
			defer ws.close()

			tags, err := ws.file.Tags()
			if err != nil {
				return err
			}
			created := !slices.Contains(tags, cfg.Tag)
			if created {
				if err := ws.save(); err != nil {
					return err
				}
			}

			cfgPath := config.ProjectConfigPath()
			wroteCfg := false
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.WriteDefault(cfgPath); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				wroteCfg = true
			}

			if flagJSON {
				return outputJSON(map[string]any{
					"data_file": cfg.DataFile, "created": created,
					"config": cfgPath, "config_created": wroteCfg,
				})
			}

			ui.PrintLogo(os.Stdout)
			if created {
				fmt.Printf("%s created %s [%s]\n", ui.Green("✓"), cfg.DataFile, cfg.Tag)
			} else {
				fmt.Printf("%s %s already has tag %s\n", ui.Dim("="), cfg.DataFile, cfg.Tag)
			}
			if wroteCfg {
				fmt.Printf("%s wrote %s\n", ui.Green("✓"), cfgPath)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var status string
	var subtasks bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in the current tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter graph.Status
			if status != "" {
				st, err := graph.ParseStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}

			ws, err := openWorkspace(false, true)
			if err != nil {
				return err
			}
			snap := ws.store.Snapshot()

			if flagJSON {
				return outputJSON(snap)
			}
			reporter.New(snap).PrintList(os.Stdout, reporter.ListOptions{Status: filter, WithSubtasks: subtasks})
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show nodes with this status")
	cmd.Flags().BoolVarP(&subtasks, "subtasks", "s", false, "Include subtasks")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task or subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := taskid.Parse(args[0])
			if err != nil {
				return err
			}
			ws, err := openWorkspace(false, true)
			if err != nil {
				return err
			}

			if flagJSON {
				if addr.IsSubtask() {
					parent, sub, err := ws.store.FindSubtask(args[0])
					if err != nil {
						return err
					}
					return outputJSON(map[string]any{"parent_id": parent.ID, "subtask": sub})
				}
				t, ok := ws.store.FindTask(addr.Parent)
				if !ok {
					return &graph.NotFoundError{Address: addr.String()}
				}
				return outputJSON(t)
			}
			return reporter.New(ws.store.Snapshot()).PrintTask(os.Stdout, addr)
		},
	}
}

// newTaskFlags registers the shared fields of add and add-subtask.
func newTaskFlags(cmd *cobra.Command, nt *graph.NewTask, priority, deps *string) {
	cmd.Flags().StringVar(&nt.Title, "title", "", "Title (required)")
	cmd.Flags().StringVar(&nt.Description, "description", "", "Description")
	cmd.Flags().StringVar(&nt.Details, "details", "", "Implementation details")
	cmd.Flags().StringVar(&nt.TestStrategy, "test-strategy", "", "How to verify the work")
	cmd.Flags().StringVar(priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(deps, "deps", "", "Comma-separated dependency ids")
	_ = cmd.MarkFlagRequired("title")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePriority(s string) (graph.Priority, error) {
	if s == "" {
		return cfg.Priority(), nil
	}
	p, ok := graph.ParsePriority(s)
	if !ok {
		return "", fmt.Errorf("invalid priority %q (want low, medium or high)", s)
	}
	return p, nil
}

func addCmd() *cobra.Command {
	var nt graph.NewTask
	var priority, deps string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePriority(priority)
			if err != nil {
				return err
			}
			nt.Priority = p
			nt.Dependencies = splitList(deps)

			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()

			t, err := ws.store.AddTask(nt)
			if err != nil {
				return err
			}
			if err := ws.save(); err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(t)
			}
			fmt.Printf("%s added %s %s\n", ui.Green("✓"), ui.TaskPrefix(taskid.Format(t.ID)), t.Title)
			return nil
		},
	}

	newTaskFlags(cmd, &nt, &priority, &deps)
	return cmd
}

func addSubtaskCmd() *cobra.Command {
	var nt graph.NewTask
	var priority, deps string

	cmd := &cobra.Command{
		Use:   "add-subtask <parent-id>",
		Short: "Add a subtask to a task",
		Long: `Add a subtask to a task. A bare number in --deps names a sibling subtask
when one exists, otherwise a top-level task; use N.M for another task's
subtask.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := taskid.Parse(args[0])
			if err != nil {
				return err
			}
			if parent.IsSubtask() {
				return &taskid.MalformedIDError{Input: args[0], Reason: "subtasks cannot have subtasks"}
			}
			// subtasks inherit the parent's priority unless given one
			if priority != "" {
				p, ok := graph.ParsePriority(priority)
				if !ok {
					return fmt.Errorf("invalid priority %q (want low, medium or high)", priority)
				}
				nt.Priority = p
			}
			nt.Dependencies = splitList(deps)

			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()

			st, err := ws.store.AddSubtask(parent.Parent, nt)
			if err != nil {
				return err
			}
			if err := ws.save(); err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(map[string]any{"parent_id": parent.Parent, "subtask": st})
			}
			fmt.Printf("%s added %s %s\n", ui.Green("✓"), ui.TaskPrefix(taskid.Format(parent.Parent, st.ID)), st.Title)
			return nil
		},
	}

	newTaskFlags(cmd, &nt, &priority, &deps)
	return cmd
}

func setStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <id>[,<id>...] <status>",
		Short: "Change the status of one or more tasks or subtasks",
		Long: `Change status. Marking a task done also marks its unfinished subtasks
done. Several comma-separated ids are applied independently: one failing
id does not undo the others.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := splitList(args[0])
			if len(ids) == 0 {
				return fmt.Errorf("no ids given")
			}

			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()
			eng, rec := ws.engine()

			if len(ids) == 1 {
				res, err := eng.SetStatus(ids[0], args[1])
				if err != nil {
					return err
				}
				if err := ws.save(); err != nil {
					return err
				}
				flush(rec)
				if flagJSON {
					return outputJSON(res)
				}
				reporter.PrintResult(os.Stdout, res)
				return nil
			}

			reqs := make([]lifecycle.Request, len(ids))
			for i, id := range ids {
				reqs[i] = lifecycle.Request{Address: id, Status: args[1]}
			}
			report := eng.BulkSetStatus(reqs)
			if len(report.Succeeded()) > 0 {
				if err := ws.save(); err != nil {
					return err
				}
				flush(rec)
			}

			if flagJSON {
				if err := outputJSON(report); err != nil {
					return err
				}
			} else {
				reporter.PrintBulk(os.Stdout, report)
			}
			if failed := len(report.Failed()); failed > 0 {
				return fmt.Errorf("%d of %d updates failed", failed, len(report.Items))
			}
			return nil
		},
	}
}

func addDepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-dep <id> <depends-on>",
		Short: "Make a task or subtask depend on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()

			if err := ws.store.AddDependency(args[0], args[1]); err != nil {
				var cycle *graph.CycleError
				if errors.As(err, &cycle) && !flagJSON {
					fmt.Fprintf(os.Stderr, "%s would close cycle %s\n", ui.Red("↻"), ui.BoldYellow(graph.FormatPath(cycle.Path)))
				}
				return err
			}
			if err := ws.save(); err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(map[string]string{"from": args[0], "to": args[1]})
			}
			fmt.Printf("%s %s now depends on %s\n", ui.Green("✓"), ui.BoldMagenta(args[0]), ui.BoldMagenta(args[1]))
			return nil
		},
	}
}

func removeDepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-dep <id> <depends-on>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()

			removed, err := ws.store.RemoveDependency(args[0], args[1])
			if err != nil {
				return err
			}
			if removed {
				if err := ws.save(); err != nil {
					return err
				}
			}

			if flagJSON {
				return outputJSON(map[string]any{"from": args[0], "to": args[1], "removed": removed})
			}
			if !removed {
				fmt.Printf("%s %s does not depend on %s\n", ui.Dim("="), ui.BoldMagenta(args[0]), ui.BoldMagenta(args[1]))
				return nil
			}
			fmt.Printf("%s %s no longer depends on %s\n", ui.Green("✓"), ui.BoldMagenta(args[0]), ui.BoldMagenta(args[1]))
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task or subtask and every reference to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(true, true)
			if err != nil {
				return err
			}
			defer ws.close()

			scrubbed, err := ws.store.DeleteNode(args[0])
			if err != nil {
				return err
			}
			if err := ws.save(); err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(map[string]any{"deleted": args[0], "references_removed": scrubbed})
			}
			fmt.Printf("%s deleted %s", ui.Green("✓"), ui.BoldMagenta(args[0]))
			if scrubbed > 0 {
				fmt.Printf(" %s", ui.Dim(fmt.Sprintf("(%d references removed)", scrubbed)))
			}
			fmt.Println()
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check for dangling dependencies and cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := cfg.Repair()
			if fix {
				mode = graph.RepairPrune
			}

			ws, err := openWorkspace(mode == graph.RepairPrune, false)
			if err != nil {
				return err
			}
			defer ws.close()

			report, err := ws.store.Repair(mode)
			if err != nil {
				return err
			}
			if report.Pruned > 0 {
				if err := ws.save(); err != nil {
					return err
				}
			}

			if flagJSON {
				if err := outputJSON(report); err != nil {
					return err
				}
			} else {
				reporter.PrintValidation(os.Stdout, report)
			}

			remaining := len(report.Cycles)
			if report.Pruned == 0 {
				remaining += len(report.Findings)
			}
			if remaining > 0 {
				return fmt.Errorf("dependency graph has %d problems", remaining)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Remove dangling dependencies")

	return cmd
}

func nextCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the next task to work on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(false, true)
			if err != nil {
				return err
			}
			snap := ws.store.Snapshot()

			cands := selector.Eligible(snap)
			if !all && len(cands) > 1 {
				cands = cands[:1]
			}

			if flagJSON {
				if all {
					return outputJSON(cands)
				}
				next, ok := selector.Next(snap)
				if !ok {
					return outputJSON(nil)
				}
				return outputJSON(next)
			}
			reporter.PrintNext(os.Stdout, cands)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every ready task in ranked order")

	return cmd
}

// planJSON is the machine-readable form of a plan.
type planJSON struct {
	CriticalPath []string     `json:"critical_path"`
	Waves        [][]string   `json:"waves"`
	Nodes        []nodeTiming `json:"nodes"`
}

type nodeTiming struct {
	ID       string `json:"id"`
	Wave     int    `json:"wave"`
	Slack    int    `json:"slack"`
	Critical bool   `json:"critical"`
}

func strs(addrs []taskid.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

// buildPlan is shared logic for plan and viz commands.
func buildPlan() (*reporter.Reporter, *cpm.CPMResult, error) {
	ws, err := openWorkspace(false, true)
	if err != nil {
		return nil, nil, err
	}
	snap := ws.store.Snapshot()

	result, err := cpm.Analyze(&snap)
	if err != nil {
		return nil, nil, fmt.Errorf("CPM analysis: %w", err)
	}
	return reporter.New(snap), result, nil
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show parallel waves and the critical path of open work",
		RunE: func(cmd *cobra.Command, args []string) error {
			rpt, result, err := buildPlan()
			if err != nil {
				return err
			}

			if flagJSON {
				out := planJSON{CriticalPath: strs(result.CriticalPath), Waves: [][]string{}, Nodes: []nodeTiming{}}
				for _, w := range result.Waves {
					out.Waves = append(out.Waves, strs(w.Addresses))
				}
				for _, a := range result.TopoOrder {
					ts := result.Tasks[a]
					out.Nodes = append(out.Nodes, nodeTiming{ID: a.String(), Wave: ts.Wave, Slack: ts.Slack, Critical: ts.IsCritical})
				}
				return outputJSON(out)
			}

			rpt.PrintPlan(os.Stdout, result)
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Print the dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "ascii" && format != "dot" {
				return fmt.Errorf("unknown format %q (want ascii or dot)", format)
			}
			rpt, result, err := buildPlan()
			if err != nil {
				return err
			}

			if format == "dot" {
				rpt.PrintDOT(os.Stdout, result)
				return nil
			}
			rpt.PrintASCII(os.Stdout, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "ascii", "Output format (ascii, dot)")

	return cmd
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags in the task file",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := state.NewFile(cfg.DataFile).Tags()
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(tags)
			}
			if len(tags) == 0 {
				fmt.Println(ui.Dim("no tags"))
			}
			for _, t := range tags {
				marker := " "
				if t == cfg.Tag {
					marker = ui.BoldGreen("*")
				}
				fmt.Printf("%s %s\n", marker, t)
			}
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded status changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.AuditLog == "" {
				return fmt.Errorf("audit log is disabled (audit_log is empty)")
			}
			entries, skipped, err := state.ReadAudit(cfg.AuditLog)
			if err != nil {
				return err
			}
			if skipped > 0 {
				log.Printf("warning: skipped %d unreadable audit lines", skipped)
			}

			var filtered []state.AuditEntry
			for _, e := range entries {
				if e.Tag == cfg.Tag {
					filtered = append(filtered, e)
				}
			}
			if limit > 0 && len(filtered) > limit {
				filtered = filtered[len(filtered)-limit:]
			}

			if flagJSON {
				if filtered == nil {
					filtered = []state.AuditEntry{}
				}
				return outputJSON(filtered)
			}
			reporter.PrintAudit(os.Stdout, filtered)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last n entries")

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect taskloom configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagJSON {
				return outputJSON(cfg)
			}
			data, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Println("# Merged configuration (defaults + global + project + env + flags)")
			fmt.Print(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("global:  %s\n", config.GlobalConfigPath())
			fmt.Printf("project: %s\n", config.ProjectConfigPath())
		},
	})

	return cmd
}
