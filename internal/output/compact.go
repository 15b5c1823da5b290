package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
)

// EventCompact prints one event in one-line compact format.
func EventCompact(w io.Writer, e journal.Entry) {
	fmt.Fprintln(w, FormatEventLine(e))
}

// EntryCompact renders journal entries in compact format.
func EntryCompact(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No events recorded.")
		return
	}
	for _, e := range entries {
		EventCompact(w, e)
	}
}

// FormatEventLine builds the one-line representation of an event:
// "#id [kind|kind] path".
func FormatEventLine(e journal.Entry) string {
	kinds := strings.Join(e.Kinds, "|")
	if kinds == "" {
		kinds = e.Flags.String()
	}
	return "#" + strconv.FormatUint(e.ID, 10) + " [" + kinds + "] " + e.Path
}
