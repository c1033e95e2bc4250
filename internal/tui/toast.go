package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ToastDuration is how long a toast stays visible.
const ToastDuration = 3 * time.Second

type ShowToastMsg struct{ Message string }

type HideToastMsg struct{ shownAt time.Time }

// ShowToast returns a command that displays message in the toast slot.
func ShowToast(message string) tea.Cmd {
	return func() tea.Msg { return ShowToastMsg{Message: message} }
}

type ToastModel struct {
	message   string
	visible   bool
	timestamp time.Time
	width     int
	now       func() time.Time
}

func NewToastModel() ToastModel { return ToastModel{visible: false, now: time.Now} }

func (m ToastModel) Update(msg tea.Msg) (ToastModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ShowToastMsg:
		m.message = msg.Message
		m.visible = true
		if m.now == nil {
			m.now = time.Now
		}
		m.timestamp = m.now()
		shownAt := m.timestamp
		return m, tea.Tick(ToastDuration, func(t time.Time) tea.Msg { return HideToastMsg{shownAt: shownAt} })
	case HideToastMsg:
		// Ignore stale hide events if a newer toast was shown since this hide was scheduled
		if msg.shownAt.IsZero() || msg.shownAt.Equal(m.timestamp) {
			m.visible = false
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}
	return m, nil
}

func (m ToastModel) Visible() bool { return m.visible }

func (m ToastModel) Message() string { return m.message }

func (m ToastModel) View() string {
	if !m.visible {
		return ""
	}
	toastStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("86")).Padding(0, 2).MarginRight(2).Bold(true)
	toast := toastStyle.Render(m.message)
	// Handle zero width gracefully: return inline toast without placement
	if m.width <= 0 {
		return toast
	}
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, toast)
}
