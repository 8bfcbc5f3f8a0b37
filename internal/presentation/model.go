package presentation

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mpbar/internal/progress"
)

type model struct {
	order  []string
	tasks  map[string]*taskState
	styles Styles

	width    int
	stopping bool
}

func newModel() model {
	return model{
		tasks:  map[string]*taskState{},
		styles: defaultStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case reportMsg:
		cmd := m.upsert(msg.R)
		return m, cmd

	case stopMsg:
		m.stopping = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmds []tea.Cmd
		for _, id := range m.order {
			ts := m.tasks[id]
			if ts.total > 0 || ts.last {
				continue
			}
			var c tea.Cmd
			ts.spinner, c = ts.spinner.Update(msg)
			if c != nil {
				cmds = append(cmds, c)
			}
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// upsert records r, creating a row for a task seen for the first time.
// Maps and pointers are shared between model copies, so mutation is visible
// to the next Update.
func (m *model) upsert(r progress.Report) tea.Cmd {
	ts, ok := m.tasks[r.TaskID]
	if !ok {
		ts = newTaskState(r, m.styles)
		m.tasks[r.TaskID] = ts
		m.order = append(m.order, r.TaskID)
	}
	ts.apply(r)
	if !ok && ts.total <= 0 {
		return ts.spinner.Tick
	}
	return nil
}

func (m model) View() string {
	return m.viewHeader() + "\n" + m.viewTasks()
}
