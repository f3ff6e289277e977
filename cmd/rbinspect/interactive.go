package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#CC342D")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#CC342D"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelect modelState = iota
	stateInputArgs
	stateDecode
	stateShowResult
)

type interactiveModel struct {
	err      error
	s        *session
	manifest string
	title    string
	result   string
	methods  []methodRef
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type loadedMsg struct {
	err     error
	methods []methodRef
}

type resultMsg struct {
	err    error
	title  string
	result string
}

func newInteractiveModel(s *session, manifestFile string) *interactiveModel {
	return &interactiveModel{
		s:        s,
		manifest: manifestFile,
		state:    stateSelect,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	if m.manifest == "" {
		return loadedMsg{}
	}
	if err := m.s.apply(m.manifest); err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{methods: m.s.methods()}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state == stateSelect || m.state == stateShowResult {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelect && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelect && m.selected < len(m.methods)-1 {
				m.selected++
			}

		case "d":
			if m.state == stateSelect {
				m.prepareDecode()
				m.state = stateDecode
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelect:
				if len(m.methods) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callMethod
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callMethod

			case stateDecode:
				return m, m.decodeHandle

			case stateShowResult:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state != stateSelect {
				m.reset()
				return m, nil
			}
		}

	case loadedMsg:
		m.err = msg.err
		m.methods = msg.methods

	case resultMsg:
		m.title = msg.title
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs || m.state == stateDecode {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelect
	m.inputs = nil
	m.result = ""
	m.err = nil
}

func newInput(prompt, placeholder string, focus bool) textinput.Model {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.Placeholder = placeholder
	ti.Width = 40
	if focus {
		ti.Focus()
	}
	return ti
}

func (m *interactiveModel) prepareInputs() {
	ref := m.methods[m.selected]
	switch {
	case ref.arity < 0:
		m.inputs = []textinput.Model{newInput("args: ", "comma-separated", true)}
	default:
		m.inputs = make([]textinput.Model, ref.arity)
		for i := range m.inputs {
			m.inputs[i] = newInput(fmt.Sprintf("arg%d: ", i), "nil, true, 42, :sym", i == 0)
		}
	}
	m.focusIdx = 0
}

func (m *interactiveModel) prepareDecode() {
	m.inputs = []textinput.Model{newInput("handle: ", "0x14", true)}
	m.focusIdx = 0
}

func (m *interactiveModel) callMethod() tea.Msg {
	ref := m.methods[m.selected]
	raw := make([]string, len(m.inputs))
	for i, in := range m.inputs {
		raw[i] = in.Value()
	}
	args, err := m.s.parseArgs(strings.Join(raw, ","))
	if err != nil {
		return resultMsg{title: ref.target, err: err}
	}
	if ref.arity >= 0 && len(args) != ref.arity {
		return resultMsg{title: ref.target, err: fmt.Errorf("want %d arguments, got %d", ref.arity, len(args))}
	}
	v, err := m.s.call(ref.target, args)
	if err != nil {
		return resultMsg{title: ref.target, err: err}
	}
	return resultMsg{title: ref.target, result: m.s.describe(v)}
}

func (m *interactiveModel) decodeHandle() tea.Msg {
	h, err := parseHandle(m.inputs[0].Value())
	if err != nil {
		return resultMsg{title: "decode", err: err}
	}
	return resultMsg{title: "decode", result: m.s.describe(h)}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("rbinspect"))
	b.WriteString(" ")
	b.WriteString(m.s.source)
	if m.manifest != "" {
		b.WriteString(" ")
		b.WriteString(m.manifest)
	}
	b.WriteString("\n\n")

	switch m.state {
	case stateSelect:
		if len(m.methods) == 0 {
			b.WriteString("No methods defined.\n")
		} else {
			b.WriteString("Select a method to call:\n\n")
		}
		for i, ref := range m.methods {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatRef(ref)))
			} else {
				b.WriteString("  " + formatRef(ref))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • d decode handle • q quit"))

	case stateInputArgs:
		ref := m.methods[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(ref.target)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateDecode:
		b.WriteString("Decode a handle\n\n")
		b.WriteString(m.inputs[0].View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter decode • esc back"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(m.title)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatRef(ref methodRef) string {
	arity := fmt.Sprintf("/%d", ref.arity)
	if ref.arity < 0 {
		arity = "/*"
	}
	return funcStyle.Render(ref.target) + typeStyle.Render(arity)
}

func runInteractive(s *session, manifestFile string) error {
	p := tea.NewProgram(newInteractiveModel(s, manifestFile), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
