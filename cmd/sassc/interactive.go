package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/sassbridge/sass"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	styleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var outputStyles = []string{"nested", "expanded", "compact", "compressed"}

type interactiveModel struct {
	err      error
	comp     *sass.Compiler
	settings *settings
	input    textinput.Model
	result   string
	took     time.Duration
	style    int
	busy     bool
}

type compiledMsg struct {
	err  error
	css  string
	took time.Duration
}

func newInteractiveModel(comp *sass.Compiler, s *settings) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "a { b { color: red } }"
	ti.Prompt = "scss> "
	ti.Width = 60
	ti.Focus()

	style := 0
	for i, name := range outputStyles {
		if name == s.style {
			style = i
		}
	}
	return &interactiveModel{comp: comp, settings: s, input: ti, style: style}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab":
			m.style = (m.style + 1) % len(outputStyles)
			return m, nil

		case "enter":
			if m.busy || strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			m.busy = true
			return m, m.compile(m.input.Value(), outputStyles[m.style])
		}

	case compiledMsg:
		m.busy = false
		m.err = msg.err
		m.result = msg.css
		m.took = msg.took
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// compile renders on the background executor so script helpers and slow
// importers do not block the UI.
func (m *interactiveModel) compile(data, style string) tea.Cmd {
	return func() tea.Msg {
		opts := m.settings.options(data, "")
		opts.OutFile = ""
		opts.SourceMap = false
		opts.OutputStyle = style

		release, err := m.settings.loadScript(opts)
		if err != nil {
			return compiledMsg{err: err}
		}
		defer release()

		start := time.Now()
		res, err := m.comp.Render(context.Background(), opts)
		if err != nil {
			return compiledMsg{err: err, took: time.Since(start)}
		}
		return compiledMsg{css: string(res.CSS), took: time.Since(start)}
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sassc"))
	b.WriteString(" ")
	b.WriteString(styleStyle.Render(outputStyles[m.style]))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.busy:
		b.WriteString("Compiling...")
	case m.err != nil:
		b.WriteString(formatError(m.err, true))
	case m.result != "":
		b.WriteString(resultStyle.Render(strings.TrimRight(m.result, "\n")))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("compiled in %s", m.took.Round(time.Microsecond))))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter compile • tab output style • esc quit"))

	return b.String()
}

func runInteractive(comp *sass.Compiler, s *settings) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(comp, s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
