package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/snabel/cli/internal/api"
	"github.com/snabel/cli/internal/status"
)

func newPlainTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
}

// RenderSessionTable writes one row per session. The focused session is
// marked with an arrow. Status text is plain so the table aligns; the icon
// carries the category.
//
// Parameters:
//   - w: Destination writer
//   - sessions: Sessions in display order
//   - focusedID: The focused session id, or ""
//   - now: Reference time for relative ages
func RenderSessionTable(w io.Writer, sessions []api.Session, focusedID string, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}

	table := newPlainTable(w)
	table.Header([]string{"", "ID", "STATUS", "MFE", "DESCRIPTION", "CREATED"})
	for _, s := range sessions {
		marker := ""
		if s.SessionID == focusedID {
			marker = "→"
		}
		created := "-"
		if !s.CreatedAt.IsZero() {
			created = humanize.RelTime(s.CreatedAt.Time, now, "ago", "from now")
		}
		label := status.StatusIcon(s.Status) + " " + status.Label(s.Status)
		if s.Merged && status.Label(s.Status) != string(status.StatusMerged) {
			label += " (merged)"
		}
		_ = table.Append([]string{
			marker,
			s.SessionID,
			label,
			dash(s.TargetMfe),
			truncate(s.Description, 48),
			created,
		})
	}
	_ = table.Render()
}

// RenderMfeTable writes the available micro-frontends.
func RenderMfeTable(w io.Writer, mfes []api.Mfe) {
	if len(mfes) == 0 {
		fmt.Fprintln(w, "No micro-frontends available.")
		return
	}
	table := newPlainTable(w)
	table.Header([]string{"NAME", "DESCRIPTION"})
	for _, m := range mfes {
		_ = table.Append([]string{m.Name, dash(m.Description)})
	}
	_ = table.Render()
}

// RenderKeyValueTable writes sorted key/value rows with the given headers.
func RenderKeyValueTable(w io.Writer, headers []string, rows [][]string) {
	table := newPlainTable(w)
	table.Header(headers)
	for _, r := range rows {
		_ = table.Append(r)
	}
	_ = table.Render()
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
