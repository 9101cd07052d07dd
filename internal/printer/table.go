package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/slok/extagger/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// TablePrinter prints information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintHandlerList prints handlers in a table format.
func (t *TablePrinter) PrintHandlerList(handlers []model.Handler) error {
	if len(handlers) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "NAME\tRULES\tCOMMAND\tCREATED")

	// Print rows.
	for _, h := range handlers {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", h.Name, len(h.Config.ExtractionRules), truncate(h.Config.Command, 50), humanize.Time(h.CreatedAt))
	}

	return nil
}

// PrintHandler prints detailed handler information.
func (t *TablePrinter) PrintHandler(h model.Handler) error {
	c := h.Config

	fmt.Fprintf(t.writer, "Name:       %s\n", h.Name)
	fmt.Fprintf(t.writer, "ID:         %s\n", h.ID)
	fmt.Fprintf(t.writer, "Command:    %s\n", c.Command)
	if c.WorkingDir != "" {
		fmt.Fprintf(t.writer, "Workdir:    %s\n", c.WorkingDir)
	}
	fmt.Fprintf(t.writer, "Input:      %s\n", enabled(!c.InputDisabled))
	if c.MetadataInputFormat != "" {
		fmt.Fprintf(t.writer, "Meta in:    %s\n", c.MetadataInputFormat)
	}
	if c.MetadataOutputFormat != "" {
		fmt.Fprintf(t.writer, "Meta out:   %s\n", c.MetadataOutputFormat)
	}
	if c.Timeout > 0 {
		fmt.Fprintf(t.writer, "Timeout:    %s\n", c.Timeout)
	}
	fmt.Fprintf(t.writer, "Exit codes: %s\n", exitCodes(c.ExitPolicy))
	fmt.Fprintf(t.writer, "Created:    %s\n", h.CreatedAt.UTC().Format(timestampLayout))

	if len(c.ExtractionRules) == 0 {
		return nil
	}

	fmt.Fprintln(t.writer)
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tSTREAM\tPATTERN\tFIELD\tVALUE GROUP")
	for i, r := range c.ExtractionRules {
		stream := r.Stream
		if stream == "" {
			stream = model.StreamBoth
		}

		var field string
		var valueGroup int
		switch f := r.Field.(type) {
		case model.FixedField:
			field, valueGroup = f.Name, f.ValueGroup
		case model.DynamicField:
			field, valueGroup = fmt.Sprintf("$%d", f.NameGroup), f.ValueGroup
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", i, stream, r.Pattern, field, valueGroup)
	}

	return nil
}

// PrintMetadata prints one row per metadata value, in field name order.
func (t *TablePrinter) PrintMetadata(meta model.Metadata) error {
	if len(meta) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, f := range meta.Fields() {
		for _, v := range meta.Get(f) {
			fmt.Fprintf(tw, "%s\t%s\n", f, strings.ReplaceAll(v, "\n", `\n`))
		}
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func exitCodes(p model.ExitPolicy) string {
	switch {
	case p.AcceptAny:
		return "any"
	case len(p.AcceptedExitCodes) == 0:
		return "0"
	}

	codes := make([]string, 0, len(p.AcceptedExitCodes))
	for _, c := range p.AcceptedExitCodes {
		codes = append(codes, fmt.Sprint(c))
	}
	return strings.Join(codes, ",")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
