package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type RecordingStartMsg struct{ Toggled bool }
type RecordingStopMsg struct{}
type LivePartialMsg struct{ Text string }
type UtteranceMsg struct {
	Text     string
	Copied   bool
	NoSpeech bool
}
type ModeLineMsg struct{ Text string }
type SessionLineMsg struct{ Text string }
type WarningMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
)

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	toggleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	noSpeechSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldSty  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

type tuiModel struct {
	state          tuiState
	toggled        bool
	recordingStart time.Time
	livePartial    string
	lastText       string
	copied         bool
	noSpeech       bool
	msgCount       int
	modeLine       string
	sessionLine    string
	warning        string
	width, height  int
}

var (
	tuiProgram  *tea.Program
	tuiMu       sync.Mutex
	tuiDone     = make(chan struct{})
	tuiReady    = make(chan struct{})
	tuiReadyOne sync.Once
)

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOne.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		return m, tuiTick()

	case RecordingStartMsg:
		if m.state != tuiStateRecording {
			m.recordingStart = time.Now()
			m.livePartial = ""
			m.warning = ""
		}
		m.state = tuiStateRecording
		m.toggled = msg.Toggled

	case RecordingStopMsg:
		m.state = tuiStateIdle

	case LivePartialMsg:
		m.livePartial = msg.Text

	case UtteranceMsg:
		m.msgCount++
		m.lastText = msg.Text
		m.copied = msg.Copied
		m.noSpeech = msg.NoSpeech
		m.livePartial = ""

	case ModeLineMsg:
		m.modeLine = msg.Text

	case SessionLineMsg:
		m.sessionLine = msg.Text

	case WarningMsg:
		m.warning = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var b strings.Builder

	if m.state == tuiStateRecording {
		elapsed := time.Since(m.recordingStart).Seconds()
		if m.toggled {
			b.WriteString(toggleStyle.Render(fmt.Sprintf("● REC %.0fs (toggled, tap to stop)", elapsed)))
		} else {
			b.WriteString(recStyle.Render(fmt.Sprintf("● REC %.0fs", elapsed)))
		}
	} else {
		b.WriteString(standbyStyle.Render("○ STANDBY"))
	}
	b.WriteString("\n\n")

	if m.state == tuiStateRecording && m.livePartial != "" {
		for _, line := range wrapText(m.livePartial, wrapWidth) {
			b.WriteString(liveStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.lastText != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Last utterance (#%d)", m.msgCount)) + "\n")
		style := textStyle
		if m.noSpeech {
			style = noSpeechSty
		}
		lines := wrapText(m.lastText, wrapWidth)
		for i, line := range lines {
			b.WriteString(style.Render(line))
			if i == len(lines)-1 && m.copied && !m.noSpeech {
				b.WriteString(" " + copiedStyle.Render("[✓ copied]"))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.warning != "" {
		b.WriteString(warnStyle.Render("⚠ "+m.warning) + "\n\n")
	}

	if m.modeLine != "" {
		b.WriteString(infoStyle.Render(m.modeLine) + "\n")
	}
	if m.sessionLine != "" {
		b.WriteString(dimStyle.Render(m.sessionLine) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpBoldSty.Render("Ctrl+Shift+Space") + helpStyle.Render(" hold to talk, tap to toggle") + "\n")
	b.WriteString(helpStyle.Render("murmur " + version))

	return lipgloss.NewStyle().Padding(1, 1).Render(b.String())
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// startTUI launches the Bubble Tea program and returns its event sink.
// tuiDone closes when the program exits (ctrl+c) so the orchestrator can
// run the same shutdown path as a signal.
func startTUI() EventSink {
	tuiMu.Lock()
	tuiProgram = tea.NewProgram(tuiModel{}, tea.WithAltScreen())
	tuiMu.Unlock()

	go func() {
		defer close(tuiDone)
		if _, err := tuiProgram.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
	}()

	<-tuiReady
	return &tuiSink{}
}

func shutdownTUI() {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// tuiSink forwards dictation events to the Bubble Tea program.
type tuiSink struct{}

func (s *tuiSink) RecordingStart(toggled bool) { tuiSend(RecordingStartMsg{Toggled: toggled}) }
func (s *tuiSink) RecordingStop()              { tuiSend(RecordingStopMsg{}) }
func (s *tuiSink) LivePartial(text string)     { tuiSend(LivePartialMsg{Text: text}) }
func (s *tuiSink) Utterance(text string, copied, noSpeech bool) {
	tuiSend(UtteranceMsg{Text: text, Copied: copied, NoSpeech: noSpeech})
}
func (s *tuiSink) ModeLine(text string)    { tuiSend(ModeLineMsg{Text: text}) }
func (s *tuiSink) SessionLine(text string) { tuiSend(SessionLineMsg{Text: text}) }
func (s *tuiSink) Warning(text string)     { tuiSend(WarningMsg{Text: text}) }
func (s *tuiSink) Error(err error)         { tuiSend(WarningMsg{Text: err.Error()}) }

// consoleSink is the headless display: plain lines on stdout.
type consoleSink struct{}

func (s *consoleSink) RecordingStart(toggled bool) {
	if toggled {
		fmt.Println("recording (toggled)...")
	} else {
		fmt.Println("recording...")
	}
}
func (s *consoleSink) RecordingStop()          {}
func (s *consoleSink) LivePartial(text string) {}
func (s *consoleSink) Utterance(text string, copied, noSpeech bool) {
	fmt.Println(text)
}
func (s *consoleSink) ModeLine(text string)    { fmt.Println(text) }
func (s *consoleSink) SessionLine(text string) { fmt.Println(text) }
func (s *consoleSink) Warning(text string)     { fmt.Println("warning: " + text) }
func (s *consoleSink) Error(err error)         { fmt.Println("error: " + err.Error()) }
