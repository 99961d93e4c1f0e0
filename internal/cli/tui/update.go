package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/kstar/internal/evaluate"
)

type progressMsg evaluate.Progress

type finishedMsg struct{}

func waitForProgress(ch <-chan evaluate.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return finishedMsg{}
		}
		return progressMsg(p)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return waitForProgress(m.config.Progress)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case progressMsg:
		p := evaluate.Progress(msg)
		m.latest = &p
		m.accuracy = append(m.accuracy, m.score())
		if len(m.accuracy) > historyLen {
			m.accuracy = m.accuracy[len(m.accuracy)-historyLen:]
		}
		if p.Done {
			m.finished = true
		}
		return m, waitForProgress(m.config.Progress)

	case finishedMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}
