package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/transcoder"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	layoutStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectType modelState = iota
	stateInputValue
	stateShowResult
)

type interactiveModel struct {
	err      error
	compiler *transcoder.Compiler
	types    map[string]layout.Layout
	result   *transcodeResult
	filename string
	names    []string
	visible  []string
	filter   textinput.Model
	value    textinput.Model
	selected int
	state    modelState
}

type transcodedMsg struct {
	err    error
	result *transcodeResult
}

func newInteractiveModel(filename string, types map[string]layout.Layout) *interactiveModel {
	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "type name"
	filter.Width = 40
	filter.Focus()

	value := textinput.New()
	value.Prompt = "value: "
	value.Placeholder = `{"x": 1}`
	value.Width = 60

	m := &interactiveModel{
		compiler: transcoder.NewCompiler(),
		types:    types,
		filename: filename,
		names:    sortedNames(types),
		filter:   filter,
		value:    value,
		state:    stateSelectType,
	}
	m.applyFilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) applyFilter() {
	query := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, name := range m.names {
		if strings.Contains(strings.ToLower(name), query) {
			m.visible = append(m.visible, name)
		}
	}
	m.selected = min(m.selected, max(len(m.visible)-1, 0))
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectType && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateSelectType && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateSelectType:
				if len(m.visible) == 0 {
					return m, nil
				}
				m.state = stateInputValue
				m.filter.Blur()
				m.value.SetValue("")
				return m, m.value.Focus()

			case stateInputValue:
				return m, m.transcode

			case stateShowResult:
				m.state = stateInputValue
				m.result = nil
				m.err = nil
				return m, m.value.Focus()
			}

		case "esc":
			switch m.state {
			case stateInputValue, stateShowResult:
				m.state = stateSelectType
				m.result = nil
				m.err = nil
				m.value.Blur()
				return m, m.filter.Focus()
			default:
				return m, tea.Quit
			}
		}

	case transcodedMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		m.value.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateSelectType:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	case stateInputValue:
		m.value, cmd = m.value.Update(msg)
	}
	return m, cmd
}

func (m *interactiveModel) current() string {
	return m.visible[m.selected]
}

func (m *interactiveModel) transcode() tea.Msg {
	name := m.current()
	result, err := transcode(context.Background(), m.compiler, m.types[name], m.value.Value())
	return transcodedMsg{result: result, err: err}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Layout Browser"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectType:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, name := range m.visible {
			line := m.formatType(name)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + name))
				b.WriteString(" " + layoutStyle.Render(m.describe(name)))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no matching types"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter encode • esc quit"))

	case stateInputValue:
		name := m.current()
		fmt.Fprintf(&b, "Encoding %s\n\n", m.formatType(name))
		b.WriteString(m.value.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter encode • esc back"))

	case stateShowResult:
		name := m.current()
		fmt.Fprintf(&b, "Result for %s:\n\n", nameStyle.Render(name))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			fmt.Fprintf(&b, "%d bytes\n", len(m.result.encoded))
			b.WriteString(m.result.dump)
			b.WriteString("\n")
			b.WriteString(resultStyle.Render(m.result.decoded))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter edit value • esc back • ctrl+c quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatType(name string) string {
	return nameStyle.Render(name) + " " + layoutStyle.Render(m.describe(name))
}

func (m *interactiveModel) describe(name string) string {
	l := m.types[name]
	traits, err := m.compiler.Traits(l)
	if err != nil {
		return l.String() + " (invalid)"
	}
	return fmt.Sprintf("%s align=%d size=%d", l, traits.Align, traits.Size)
}

func runInteractive(filename string, types map[string]layout.Layout) error {
	p := tea.NewProgram(newInteractiveModel(filename, types), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
