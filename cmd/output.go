package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"chatwidget-cli/cmd/utils"
)

// MessageType represents the type of output message
type MessageType int

const (
	InfoMessage MessageType = iota
	WarningMessage
	ErrorMessage
	SuccessMessage
	DebugMessage
)

// OutputMessage represents a message to be displayed
type OutputMessage struct {
	Type    MessageType
	Content string
	Writer  io.Writer // fallback writer when not in TUI mode
	NoEmoji bool      // if true, don't add emoji prefix
}

// TUIMessageMsg is a Bubble Tea message for routing output to the TUI
type TUIMessageMsg struct {
	Message OutputMessage
}

// programSender is the part of *tea.Program the output manager uses.
type programSender interface {
	Send(msg tea.Msg)
}

// OutputManager manages all CLI output routing
type OutputManager struct {
	mu           sync.RWMutex
	tuiProgram   programSender
	inTUIMode    bool
	messageQueue []OutputMessage
	stdout       io.Writer
	stderr       io.Writer
}

var outputManager = &OutputManager{stdout: os.Stdout, stderr: os.Stderr}

// SetTUIMode configures the output manager for TUI mode and stops the
// --debug stderr mirror while the program owns the terminal.
func SetTUIMode(program *tea.Program) {
	utils.MirrorToStderr(false)
	if program == nil {
		setTUISender(nil)
		return
	}
	setTUISender(program)
}

func setTUISender(program programSender) {
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.tuiProgram = program
	outputManager.inTUIMode = true

	// Send any queued messages to the TUI. The program may not be running
	// yet, so delivery must not block.
	if program != nil {
		for _, msg := range outputManager.messageQueue {
			go program.Send(TUIMessageMsg{Message: msg})
		}
		outputManager.messageQueue = nil
	}
}

// ClearTUIMode disables TUI mode
func ClearTUIMode() {
	utils.MirrorToStderr(true)
	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()
	outputManager.tuiProgram = nil
	outputManager.inTUIMode = false
	outputManager.messageQueue = nil
}

// sendMessage routes a message to the appropriate output destination
func sendMessage(msgType MessageType, format string, args ...interface{}) {
	sendMessageWithOptions(msgType, false, format, args...)
}

// sendMessageWithOptions routes a message with optional emoji control
func sendMessageWithOptions(msgType MessageType, noEmoji bool, format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)

	outputManager.mu.Lock()
	defer outputManager.mu.Unlock()

	msg := OutputMessage{
		Type:    msgType,
		Content: content,
		Writer:  outputManager.writerFor(msgType),
		NoEmoji: noEmoji,
	}

	switch {
	case outputManager.inTUIMode && outputManager.tuiProgram != nil:
		// Callers may be inside Update; never block the UI loop
		go outputManager.tuiProgram.Send(TUIMessageMsg{Message: msg})
	case outputManager.inTUIMode:
		// TUI mode but no program yet, queue the message
		outputManager.messageQueue = append(outputManager.messageQueue, msg)
	default:
		fmt.Fprint(msg.Writer, FormatMessage(msg)+"\n")
	}
}

// writerFor returns the appropriate writer for each message type
func (o *OutputManager) writerFor(msgType MessageType) io.Writer {
	switch msgType {
	case ErrorMessage, WarningMessage, DebugMessage:
		return o.stderr
	default:
		return o.stdout
	}
}

// Public API functions for different message types

// OutputInfo sends an informational message
func OutputInfo(format string, args ...interface{}) {
	sendMessage(InfoMessage, format, args...)
}

// OutputInfoPlain sends an informational message without emoji
func OutputInfoPlain(format string, args ...interface{}) {
	sendMessageWithOptions(InfoMessage, true, format, args...)
}

// OutputWarning sends a warning message
func OutputWarning(format string, args ...interface{}) {
	sendMessage(WarningMessage, format, args...)
}

// OutputError sends an error message
func OutputError(format string, args ...interface{}) {
	sendMessage(ErrorMessage, format, args...)
}

// OutputSuccess sends a success message
func OutputSuccess(format string, args ...interface{}) {
	sendMessage(SuccessMessage, format, args...)
}

// OutputDebug sends a debug message (respects the global debug flag)
func OutputDebug(format string, args ...interface{}) {
	if !debug {
		return
	}
	sendMessage(DebugMessage, format, args...)
}

// FormatMessage prefixes a message with the emoji for its type.
func FormatMessage(msg OutputMessage) string {
	if msg.NoEmoji {
		return msg.Content
	}

	var prefix string
	switch msg.Type {
	case InfoMessage:
		prefix = "ℹ️"
	case WarningMessage:
		prefix = "⚠️"
	case ErrorMessage:
		prefix = "❌"
	case SuccessMessage:
		prefix = "✅"
	case DebugMessage:
		prefix = "🐛"
	}

	return fmt.Sprintf("%s  %s", prefix, msg.Content)
}
