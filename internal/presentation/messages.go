package presentation

import "mpbar/internal/progress"

type reportMsg struct {
	R progress.Report
}

type stopMsg struct{}
