package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"chatwidget-cli/cmd/utils"
	"chatwidget-cli/internal/chat"
	uitk "chatwidget-cli/internal/tui"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
)

var (
	userPrompt = "> "
	botPrompt  = "💬 Bot:"
)

const gap = "\n\n"

// Messages delivered to the UI loop from pipeline goroutines and the watcher.
type transcriptAppendedMsg struct{ message chat.Message }
type pipelineSettledMsg struct{ result chat.Result }
type serverStatusMsg struct{ err error }
type configReloadedMsg struct {
	session *ChatSessionContext
	err     error
}

// runChatSessionTUI starts the Bubble Tea TUI for chat.
func runChatSessionTUI() error {
	sessionCtx, err := resolveSessionContext()
	if err != nil {
		return err
	}
	pipeline, err := newChatPipeline(sessionCtx, utils.Logger())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transcript := chat.NewTranscript()
	widget := chat.NewWidget(ctx, transcript, pipeline)
	// Runs after p.Run returns; cancels retries that are still waiting.
	defer widget.Close()

	m := newChatModel(widget, sessionCtx)
	p := tea.NewProgram(m)

	// Hooks fire on pipeline goroutines and, for the user message, inside
	// Update itself, so sends must never block.
	notify := func(msg tea.Msg) { go p.Send(msg) }
	transcript.SetAppendHook(func(msg chat.Message) { notify(transcriptAppendedMsg{message: msg}) })
	widget.SetSettledHook(func(r chat.Result) { notify(pipelineSettledMsg{result: r}) })

	if err := StartConfigWatcher(ctx, utils.GetEffectiveCWD(), sessionCtx.ConfigPath, func() {
		reloaded, err := resolveSessionContext()
		if err == nil {
			var next *chat.Pipeline
			if next, err = newChatPipeline(reloaded, utils.Logger()); err == nil {
				widget.SetPipeline(next)
			}
		}
		notify(configReloadedMsg{session: reloaded, err: err})
	}); err != nil {
		utils.LogDebug(fmt.Sprintf("config watcher not started: %v", err))
	}

	// Enable TUI mode for output routing
	SetTUIMode(p)
	defer ClearTUIMode()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

type chatModel struct {
	widget     *chat.Widget
	session    *ChatSessionContext
	transcript string
	notice     string
	reachable  bool
	spin       spinner.Model
	width      int
	termHeight int
	viewport   viewport.Model
	textarea   textarea.Model
	toast      uitk.ToastModel
	// copyToClipboard is swapped out in tests
	copyToClipboard func(string) error
}

func newChatModel(widget *chat.Widget, session *ChatSessionContext) chatModel {
	ta := textarea.New()
	ta.Placeholder = session.Config.Placeholder
	ta.Focus()

	ta.Prompt = userPrompt

	ta.SetWidth(30)
	ta.SetHeight(1)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(30, 5)

	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	width, _, _ := term.GetSize(uintptr(os.Stdout.Fd()))

	m := chatModel{
		widget:          widget,
		session:         session,
		reachable:       true,
		spin:            s,
		width:           width,
		viewport:        vp,
		textarea:        ta,
		toast:           uitk.NewToastModel(),
		copyToClipboard: clipboard.WriteAll,
	}
	m.refreshViewportBottom()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, pingServerCmd(m.session.Config.ServerURL))
}

func pingServerCmd(base string) tea.Cmd {
	return func() tea.Msg {
		return serverStatusMsg{err: utils.PingURL(context.Background(), base)}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		cmd   tea.Cmd
		cmds  []tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	// Route all messages to toast
	m.toast, cmd = m.toast.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	// Forward all messages to the spinner so it processes its own TickMsgs
	m.spin, cmd = m.spin.Update(msg)

	cmds = append(cmds, vpCmd, tiCmd, cmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(renderInfoBar(m))
		footerHeight := lipgloss.Height(renderChatInput(m))
		// Keep viewport height positive on tiny terminals
		newHeight := msg.Height - footerHeight - headerHeight
		if newHeight < 1 {
			newHeight = 1
		}

		m.viewport.Width = msg.Width
		m.viewport.Height = newHeight

		newWidth := msg.Width - 2
		if newWidth < 10 {
			newWidth = 10
		}
		m.textarea.SetWidth(newWidth)
		m.width = msg.Width
		m.termHeight = msg.Height
		m.refreshViewportBottom()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+y":
			return m, m.copyLastReply()

		case "enter":
			m.widget.SetDraft(m.textarea.Value())
			if id, ok := m.widget.Submit(); ok {
				utils.LogDebug(fmt.Sprintf("submitted pipeline %s", id))
				m.refreshViewportBottom()
			}
			return m, tea.Batch(cmds...)
		}
		// Every keystroke mirrors the input into the widget draft
		m.widget.SetDraft(m.textarea.Value())

	case transcriptAppendedMsg:
		m.refreshViewportBottom()

	case pipelineSettledMsg:
		if msg.result.Outcome != chat.OutcomeCancelled {
			// The widget cleared its draft; keep the input in step
			m.textarea.Reset()
		}
		m.refreshViewportBottom()

	case serverStatusMsg:
		if msg.err != nil {
			m.reachable = false
			m.notice = fmt.Sprintf("Server %s is not reachable (%v). Messages will be retried.", m.session.Config.ServerURL, msg.err)
		} else {
			m.reachable = true
			m.notice = ""
		}
		m.refreshViewportBottom()

	case configReloadedMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Config not reloaded: %v", msg.err)
			m.refreshViewportBottom()
			return m, tea.Batch(cmds...)
		}
		m.session = msg.session
		m.textarea.Placeholder = msg.session.Config.Placeholder
		cmds = append(cmds, uitk.ShowToast("Config reloaded"), pingServerCmd(msg.session.Config.ServerURL))

	case TUIMessageMsg:
		m.notice = FormatMessage(msg.Message)
		m.refreshViewportBottom()
	}

	return m, tea.Batch(cmds...)
}

// copyLastReply puts the newest bot message on the clipboard.
func (m chatModel) copyLastReply() tea.Cmd {
	last, ok := m.widget.Transcript().LastFrom(chat.SenderBot)
	if !ok {
		return uitk.ShowToast("No reply to copy yet")
	}
	if err := m.copyToClipboard(last.Text); err != nil {
		utils.LogDebug(fmt.Sprintf("clipboard write failed: %v", err))
		return uitk.ShowToast("Clipboard unavailable")
	}
	return uitk.ShowToast("Copied last reply")
}

// computeTranscript renders messages oldest first, wrapping any message wider
// than width.
func computeTranscript(messages []chat.Message, width int) string {
	var b strings.Builder

	baseStyle := lipgloss.NewStyle()
	for _, message := range messages {
		var line string
		switch message.Sender {
		case chat.SenderBot:
			labelStyle := baseStyle.Foreground(lipgloss.Color("11"))
			line = labelStyle.Render(botPrompt) + " " + message.Text
		case chat.SenderUser:
			style := baseStyle.Foreground(lipgloss.Color("#ccc"))
			line = style.Bold(true).Render(userPrompt) + style.Render(message.Text)
		}
		if width > 0 && lipgloss.Width(line) > width {
			line = ansi.Wrap(line, width, "")
		}
		if message.Sender == chat.SenderBot {
			line += "\n"
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

func renderChatContent(m chatModel) string {
	var b strings.Builder

	if m.notice != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Width(max(m.width-2, 10)).Render(m.notice))
		b.WriteString(gap)
	}

	b.WriteString(m.transcript)

	if n := m.widget.InFlight(); n > 0 {
		sendingText := botPrompt + " " + m.spin.View() + "Sending"
		if n > 1 {
			sendingText += fmt.Sprintf(" (%d)", n)
		}
		wrapped := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Width(max(m.width-2, 10)).Render(sendingText)
		b.WriteString(wrapped + gap)
	}

	return b.String()
}

// setViewportContent updates the viewport with the current chat rendering.
func (m *chatModel) setViewportContent() {
	m.transcript = computeTranscript(m.widget.Transcript().Messages(), m.width)
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(renderChatContent(*m)))
}

// refreshViewportBottom updates the viewport and scrolls to the bottom.
func (m *chatModel) refreshViewportBottom() {
	m.setViewportContent()
	m.viewport.GotoBottom()
}

func renderChatInput(m chatModel) string {
	var b strings.Builder

	b.WriteString(gap)

	cbStyle := lipgloss.NewStyle().
		MarginBottom(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63"))

	b.WriteString(cbStyle.Render(m.textarea.View()))

	helpText := "Enter: send | Ctrl+Y: copy last reply | Esc/Ctrl+C: quit"

	b.WriteString("\n")
	wrappedHelp := lipgloss.NewStyle().Faint(true).Width(max(m.width-2, 10)).Render(helpText)
	b.WriteString(wrappedHelp)
	b.WriteString("\n")

	return b.String()
}

func renderInfoBar(m chatModel) string {
	state := "idle"
	if n := m.widget.InFlight(); n > 0 {
		state = fmt.Sprintf("sending %d", n)
	}

	statusIcon := "🟢"
	if !m.reachable {
		statusIcon = "🔴"
	}

	where := utils.Locality(m.session.Config.ServerURL)

	endpoint := m.session.Config.EndpointURL()
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	statusLine := fmt.Sprintf("💬 CHAT | %s %s (%s) | %s", statusIcon, endpoint, where, state)

	style := lipgloss.NewStyle().
		Width(m.width).
		Background(lipgloss.Color("#027ffd")).
		Foreground(lipgloss.Color("#ffffff")).
		PaddingLeft(1).
		PaddingRight(1)

	// Truncate by display width; the line holds emoji
	if limit := m.width - 2; lipgloss.Width(statusLine) > limit {
		statusLine = ansi.Truncate(statusLine, max(limit, 0), "...")
	}

	return style.Render(statusLine)
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString(renderChatInput(m))
	// Always draw the status bar at the very bottom
	b.WriteString(renderInfoBar(m))

	// Toast on top-right
	if v := m.toast.View(); v != "" {
		b.WriteString("\n")
		b.WriteString(v)
	}

	return b.String()
}
