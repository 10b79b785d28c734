package views

import (
	"fmt"
	"path/filepath"
	"strings"

	"shiwake/internal/tui/common"
	"shiwake/internal/tui/styles"
	"shiwake/pkg/types"
)

func RenderMainView(m common.ModelReader) string {
	var sb strings.Builder
	p := m.Progress()

	sb.WriteString(styles.Theme.Title.Render("shiwake"))
	sb.WriteString("\n")
	sb.WriteString("Organizing into " + styles.Theme.Path.Render(m.DestinationRoot()) + "\n\n")

	sb.WriteString(m.ProgressBar())
	sb.WriteString(fmt.Sprintf("  %d/%d\n\n", p.ProcessedFiles, p.TotalFiles))

	for _, r := range m.Recent() {
		sb.WriteString(RenderResult(r) + "\n")
	}
	if len(m.Recent()) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(renderStatus(m) + "\n\n")
	sb.WriteString(m.HelpView())

	return styles.Theme.App.Render(sb.String())
}

// RenderResult formats one outcome as a single line.
func RenderResult(r types.FileResult) string {
	name := filepath.Base(r.FilePath)
	if r.Success {
		return styles.Theme.Success.Render("✓ ") + name + styles.Theme.Dim.Render(" → "+r.Category)
	}
	return styles.Theme.Failure.Render("✗ ") + name + styles.Theme.Dim.Render("  "+r.Message)
}

func renderStatus(m common.ModelReader) string {
	succeeded, failed := m.Counts()
	p := m.Progress()

	switch m.Phase() {
	case common.Cancelling:
		return styles.Theme.Warning.Render("Cancelling after the current file...")
	case common.Finished:
		if p.Cancelled {
			return styles.Theme.Warning.Render(fmt.Sprintf("Cancelled after %d of %d files: %d moved, %d failed",
				p.ProcessedFiles, p.TotalFiles, succeeded, failed))
		}
		return styles.Theme.Success.Render(fmt.Sprintf("Done: %d moved, %d failed", succeeded, failed))
	}
	return m.Spinner() + " " + styles.Theme.Dim.Render(fmt.Sprintf("Working: %d moved, %d failed", succeeded, failed))
}
