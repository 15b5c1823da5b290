package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

const defaultWrap = 80

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List change kinds and stream flags",
	Long: `Lists every change kind an event can carry and every stream flag accepted
by --events and the events config key.`,
	Args: cobra.NoArgs,
	RunE: runFlags,
}

func init() {
	flagsCmd.Flags().Bool("raw", false, "print markdown without rendering")
	rootCmd.AddCommand(flagsCmd)
}

// flagInfo is one row of the flag reference.
type flagInfo struct {
	Name string `json:"name"`
	Bit  string `json:"bit"`
}

func changeKinds() []flagInfo {
	names := fsevent.FlagNames()
	out := make([]flagInfo, len(names))
	for i, n := range names {
		out[i] = flagInfo{Name: n.Name, Bit: fmt.Sprintf("0x%08x", uint32(n.Flag))}
	}
	return out
}

func streamFlags() []flagInfo {
	names := fsevent.CreateFlagNames()
	out := make([]flagInfo, len(names))
	for i, n := range names {
		c, _ := fsevent.ParseCreateFlags([]string{n})
		out[i] = flagInfo{Name: n, Bit: fmt.Sprintf("0x%08x", uint32(c))}
	}
	return out
}

// flagsMarkdown renders the reference as two markdown tables.
func flagsMarkdown() string {
	var b strings.Builder
	section := func(title string, rows []flagInfo) {
		fmt.Fprintf(&b, "## %s\n\n| Name | Bit |\n|---|---|\n", title)
		for _, r := range rows {
			fmt.Fprintf(&b, "| `%s` | `%s` |\n", r.Name, r.Bit)
		}
		b.WriteString("\n")
	}
	section("Change kinds", changeKinds())
	section("Stream flags", streamFlags())
	fmt.Fprintf(&b, "Default stream flags: `%s`\n", fsevent.DefaultMask)
	return b.String()
}

func runFlags(cmd *cobra.Command, _ []string) error {
	if flagJSON {
		return output.JSON(os.Stdout, map[string]any{
			"kinds":   changeKinds(),
			"streams": streamFlags(),
			"default": fsevent.DefaultMask.Names(),
		})
	}

	md := flagsMarkdown()
	raw, _ := cmd.Flags().GetBool("raw")
	if raw || !output.IsTerminal(os.Stdout) {
		fmt.Fprint(os.Stdout, md)
		return nil
	}

	width := defaultWrap
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 { //nolint:gosec // fd fits in int
		width = w
	}
	style := glamour.WithAutoStyle()
	if flagNoColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}
