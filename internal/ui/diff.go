package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	deletedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Strikethrough(true)
	insertedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))
	unchangedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

func promptDiffs(saved, edited string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(saved, edited, false)
	return dmp.DiffCleanupSemantic(diffs)
}

// renderPromptDiff shows how an edited character setting differs from the
// saved one.
func renderPromptDiff(saved, edited string) string {
	var styled strings.Builder
	for _, diff := range promptDiffs(saved, edited) {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			styled.WriteString(deletedStyle.Render(diff.Text))
		case diffmatchpatch.DiffInsert:
			styled.WriteString(insertedStyle.Render(diff.Text))
		case diffmatchpatch.DiffEqual:
			styled.WriteString(unchangedStyle.Render(diff.Text))
		}
	}
	return styled.String()
}

// diffSummary counts the characters added and removed by an edit.
func diffSummary(saved, edited string) string {
	var added, removed int
	for _, diff := range promptDiffs(saved, edited) {
		n := len([]rune(diff.Text))
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			removed += n
		case diffmatchpatch.DiffInsert:
			added += n
		}
	}
	if added == 0 && removed == 0 {
		return "no changes"
	}
	return fmt.Sprintf("+%d −%d", added, removed)
}
