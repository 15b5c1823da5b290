package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
)

// TimeLayout is the timestamp layout of streamed rows.
const TimeLayout = "15:04:05.000"

const (
	timeW  = 13
	kindsW = 30
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	// Action colors, shared with the TUI event list.
	actionStyles = map[fsevent.Flags]lipgloss.Style{
		fsevent.FlagItemCreated:     lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		fsevent.FlagItemRemoved:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		fsevent.FlagItemRenamed:     lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		fsevent.FlagItemModified:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		fsevent.FlagItemInodeMeta:   lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		fsevent.FlagItemXattrMod:    lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		fsevent.FlagItemChangeOwner: lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		fsevent.FlagRootChanged:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		fsevent.FlagMustScanSubDirs: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}

	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// actionOrder ranks the bits that pick a row's color, most significant first.
var actionOrder = []fsevent.Flags{
	fsevent.FlagMustScanSubDirs,
	fsevent.FlagRootChanged,
	fsevent.FlagItemRemoved,
	fsevent.FlagItemRenamed,
	fsevent.FlagItemCreated,
	fsevent.FlagItemModified,
	fsevent.FlagItemInodeMeta,
	fsevent.FlagItemXattrMod,
	fsevent.FlagItemChangeOwner,
}

// DisableColor strips all styling from table output.
func DisableColor() {
	headerStyle = lipgloss.NewStyle()
	dimStyle = lipgloss.NewStyle()
	pathStyle = lipgloss.NewStyle()
	actionStyles = map[fsevent.Flags]lipgloss.Style{}
}

// ActionStyle returns the style for the most significant action in flags.
func ActionStyle(flags fsevent.Flags) lipgloss.Style {
	for _, bit := range actionOrder {
		if flags&bit == 0 {
			continue
		}
		if st, ok := actionStyles[bit]; ok {
			return st
		}
	}
	return dimStyle
}

// EventHeader prints the column header of an event table.
func EventHeader(w io.Writer) {
	header := fmt.Sprintf("%-*s %-*s %s", timeW, "TIME", kindsW, "KINDS", "PATH")
	fmt.Fprintln(w, headerStyle.Render(header))
}

// EventRow prints one event as a table row.
func EventRow(w io.Writer, e journal.Entry) {
	kinds := strings.Join(e.Kinds, ",")
	if kinds == "" {
		kinds = e.Flags.String()
	}
	row := fmt.Sprintf("%s %s %s",
		padRight(dimStyle.Render(e.Timestamp.Local().Format(TimeLayout)), timeW),
		padRight(ActionStyle(e.Flags).Render(kinds), kindsW),
		pathStyle.Render(e.Path))
	fmt.Fprintln(w, strings.TrimRight(row, " "))
}

// EntryTable renders journal entries as a table.
func EntryTable(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No events recorded.")
		return
	}
	EventHeader(w)
	for _, e := range entries {
		EventRow(w, e)
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format+"\n", args...)
}

// Field prints an aligned "label: value" line.
func Field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

// FormatDuration renders a duration as human-readable "Xh Ym" or "Xm Ys".
func FormatDuration(d time.Duration) string {
	if d >= time.Hour {
		return strconv.Itoa(int(d.Hours())) + "h " + strconv.Itoa(int(d.Minutes())%60) + "m" //nolint:mnd // 60 minutes per hour
	}
	return strconv.Itoa(int(d.Minutes())) + "m " + strconv.Itoa(int(d.Seconds())%60) + "s" //nolint:mnd // 60 seconds per minute
}

// padRight pads s with spaces to the given visible width, accounting for ANSI
// escape codes that are invisible but consume bytes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
