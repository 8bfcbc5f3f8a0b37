package presentation

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

func (m model) viewHeader() string {
	done := 0
	for _, id := range m.order {
		if m.tasks[id].last {
			done++
		}
	}
	title := m.styles.Title.Render("mpbar")
	sub := m.styles.Subtitle.Render(fmt.Sprintf("tasks: %d/%d done", done, len(m.order)))
	return title + "  " + sub
}

func (m model) viewTasks() string {
	var b strings.Builder
	for _, id := range m.order {
		b.WriteString(m.viewTask(m.tasks[id]))
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) viewTask(ts *taskState) string {
	var bar string
	if ts.total > 0 {
		pct := float64(ts.done) / float64(ts.total)
		if pct > 1 {
			pct = 1
		}
		bar = ts.bar.ViewAs(pct)
	} else if ts.last {
		bar = m.styles.Success.Render("✓ done")
	} else {
		bar = m.styles.Spinner.Render(ts.spinner.View()) + " " + m.styles.Faint.Render("running")
	}

	total := "?"
	if ts.total > 0 {
		total = humanize.Comma(int64(ts.total))
	}
	counts := m.styles.Counts.Render(fmt.Sprintf("%8s / %8s", humanize.Comma(int64(ts.done)), total))
	return fmt.Sprintf("%s %s  %s%s", bar, counts, m.styles.TaskName.Render(truncate(ts.name, m.nameWidth())), m.originTag(ts))
}

func (m model) originTag(ts *taskState) string {
	switch {
	case ts.origin.Child:
		return " " + m.styles.Child.Render(fmt.Sprintf("[pid %d]", ts.origin.PID))
	case ts.origin.Worker != "":
		return " " + m.styles.Worker.Render("["+ts.origin.Worker+"]")
	default:
		return ""
	}
}

// nameWidth leaves room for the bar and counts on the current terminal.
func (m model) nameWidth() int {
	const fixed = 62
	switch {
	case m.width == 0:
		return 48
	case m.width-fixed < 12:
		return 12
	default:
		return m.width - fixed
	}
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
