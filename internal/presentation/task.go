package presentation

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"mpbar/internal/progress"
)

type taskState struct {
	id     string
	name   string
	done   int
	total  int
	last   bool
	origin progress.Origin

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newTaskState(r progress.Report, styles Styles) *taskState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	return &taskState{
		id:      r.TaskID,
		name:    r.Name,
		spinner: sp,
		bar: bubblesprogress.New(
			bubblesprogress.WithDefaultGradient(),
			bubblesprogress.WithWidth(40),
		),
	}
}

func (ts *taskState) apply(r progress.Report) {
	ts.done = r.Done
	ts.total = r.Total
	ts.last = ts.last || r.Last
	ts.origin = r.Origin
	if r.Name != "" {
		ts.name = r.Name
	}
}
