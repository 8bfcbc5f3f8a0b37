package presentation

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	TaskName lipgloss.Style
	Counts   lipgloss.Style
	Success  lipgloss.Style
	Faint    lipgloss.Style
	Spinner  lipgloss.Style
	Worker   lipgloss.Style
	Child    lipgloss.Style
}

func defaultStyles() Styles {
	base := lipgloss.NewStyle()
	return Styles{
		Title:    base.Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Subtitle: base.Faint(true),
		TaskName: base.Foreground(lipgloss.Color("#D1D5DB")),
		Counts:   base.Foreground(lipgloss.Color("#A3A3A3")),
		Success:  base.Foreground(lipgloss.Color("#22C55E")),
		Faint:    base.Faint(true),
		Spinner:  base.Foreground(lipgloss.Color("#22D3EE")),
		Worker:   base.Foreground(lipgloss.Color("#06B6D4")),
		Child:    base.Foreground(lipgloss.Color("#D946EF")),
	}
}
