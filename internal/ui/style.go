package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// SetColor turns styling on or off for every helper in this package.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// PrintLogo renders the colored taskloom banner.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	knots := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	knots.Fprintln(w, "   |  o--o--o     o--o--o--o  |")
	brand.Fprintln(w, "   |  T  A  S  K  L  O  O  M  |")
	knots.Fprintln(w, "   |  o--o--o--o--o     o--o  |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintln(w, "   dependency-aware task tracking")
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task address to a palette index.
func taskColorIndex(id string) int {
	var h uint32
	for _, c := range id {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [id] prefix string. Each id gets a stable
// color from the palette.
func TaskPrefix(id string) string {
	c := taskColors[taskColorIndex(id)]
	return Dim("[") + c(id) + Dim("]")
}

// StatusIcon returns a colored status icon for compact table display.
func StatusIcon(status string) string {
	switch status {
	case "done":
		return Green("✓")
	case "in-progress":
		return Cyan("●")
	case "review":
		return Magenta("◐")
	case "deferred":
		return Yellow("⏸")
	case "cancelled":
		return Dim("⊘")
	default:
		return Dim("◌")
	}
}

// StatusText returns the status name in its display color.
func StatusText(status string) string {
	switch status {
	case "done":
		return Green(status)
	case "in-progress":
		return BoldCyan(status)
	case "review":
		return Magenta(status)
	case "deferred":
		return Yellow(status)
	case "cancelled":
		return Dim(status)
	default:
		return status
	}
}

// PriorityText colors a priority label.
func PriorityText(priority string) string {
	switch priority {
	case "high":
		return BoldRed(priority)
	case "low":
		return Dim(priority)
	case "":
		return Dim("medium")
	default:
		return Yellow(priority)
	}
}

// WaveStatus returns a colored wave status string.
func WaveStatus(status string) string {
	switch status {
	case "ready":
		return BoldCyan("ready")
	default:
		return Dim("blocked")
	}
}
