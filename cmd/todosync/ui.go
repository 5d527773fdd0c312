package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

func renderAccent(s string) string { return accentStyle.Render(s) }
func renderPass(s string) string   { return passStyle.Render(s) }
func renderWarn(s string) string   { return warnStyle.Render(s) }
func renderFail(s string) string   { return failStyle.Render(s) }
func renderMuted(s string) string  { return mutedStyle.Render(s) }
func renderLabel(s string) string  { return labelStyle.Render(s) }

// renderCategory draws a category name in its own colors.
func renderCategory(c schema.Category) string {
	pair := schema.Color(c.ColorIdentifier)
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(pair.Foreground)).
		Background(lipgloss.Color(pair.Background)).
		Padding(0, 1).
		Render(c.Name)
}

// renderTask formats one task line: short id, checkbox, star, title and due date.
func renderTask(t schema.Task, categories map[string]schema.Category) string {
	box := "[ ]"
	if t.Completed {
		box = renderPass("[x]")
	}
	star := " "
	if t.Starred {
		star = renderWarn("*")
	}

	line := fmt.Sprintf("%s %s %s %s", renderMuted(shortID(t.ID)), box, star, t.Title)
	if t.DueAt != nil {
		line += " " + renderMuted("due "+t.DueAt.Local().Format("Mon Jan 2 15:04"))
	}
	for _, id := range t.CategoryIDs {
		if c, ok := categories[id]; ok {
			line += " " + renderCategory(c)
		}
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
