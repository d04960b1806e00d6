package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// SegmentsModel is the bubbletea model for browsing a chapter's
// dialogue/narration tiling.
type SegmentsModel struct {
	title    string
	segments []lint.Segment
	cursor   int
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	// dialogueOnly hides narration spans to follow a conversation
	dialogueOnly bool
	visible      []int

	keys   segKeyMap
	styles segStyles
}

type segKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Dialogue key.Binding
	Quit     key.Binding
}

type segStyles struct {
	selected  lipgloss.Style
	dialogue  lipgloss.Style
	narration lipgloss.Style
	speaker   lipgloss.Style
	review    lipgloss.Style
	dim       lipgloss.Style
	statusBar lipgloss.Style
	helpBar   lipgloss.Style
}

func defaultSegKeyMap() segKeyMap {
	return segKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Dialogue: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dialogue only"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func defaultSegStyles() segStyles {
	return segStyles{
		selected:  lipgloss.NewStyle().Background(lipgloss.Color("237")).Bold(true),
		dialogue:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		narration: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		speaker:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		review:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		statusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1),
		helpBar:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(lipgloss.Color("235")),
	}
}

// NewSegmentsModel creates the segment browser for one chapter.
func NewSegmentsModel(title string, segments []lint.Segment) SegmentsModel {
	m := SegmentsModel{
		title:    title,
		segments: segments,
		keys:     defaultSegKeyMap(),
		styles:   defaultSegStyles(),
	}
	m.rebuildVisible()
	return m
}

func (m *SegmentsModel) rebuildVisible() {
	m.visible = m.visible[:0]
	for i, seg := range m.segments {
		if m.dialogueOnly && seg.Type != lint.SegmentDialogue {
			continue
		}
		m.visible = append(m.visible, i)
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Init initializes the model
func (m SegmentsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m SegmentsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Dialogue):
			m.dialogueOnly = !m.dialogueOnly
			m.rebuildVisible()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 3
		}
	}

	return m, nil
}

// View renders the browser: the segment list, a status line for the
// selected span, and the key help.
func (m SegmentsModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	listHeight := m.height - 3
	if listHeight < 5 {
		listHeight = 5
	}

	var sb strings.Builder

	lines := make([]string, 0, len(m.visible))
	for vi, si := range m.visible {
		lines = append(lines, m.renderSegment(m.segments[si], vi == m.cursor))
	}

	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := start + listHeight
	if end > len(lines) {
		end = len(lines)
	}
	if start < len(lines) {
		sb.WriteString(strings.Join(lines[start:end], "\n"))
	}
	for i := end - start; i < listHeight; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.statusBar.Width(m.width).Render(m.statusLine()))
	sb.WriteString("\n")
	help := fmt.Sprintf(" ↑↓ navigate  d dialogue only(%s)  q quit", onOff(m.dialogueOnly))
	sb.WriteString(m.styles.helpBar.Width(m.width).Render(help))

	return sb.String()
}

func (m SegmentsModel) renderSegment(seg lint.Segment, selected bool) string {
	var marker string
	var style lipgloss.Style
	if seg.Type == lint.SegmentDialogue {
		marker = "“”"
		style = m.styles.dialogue
	} else {
		marker = "¶ "
		style = m.styles.narration
	}

	speaker := m.styles.speaker.Render(seg.Speaker)
	if seg.NeedsReview {
		speaker += m.styles.review.Render(" (review)")
	}

	text := strings.Join(strings.Fields(seg.Text), " ")
	max := m.width - lipgloss.Width(speaker) - 10
	if max < 20 {
		max = 20
	}
	if len(text) > max {
		text = text[:max-3] + "..."
	}

	line := fmt.Sprintf("%s %s  %s", m.styles.dim.Render(marker), speaker, style.Render(text))
	if selected {
		line = m.styles.selected.Render(line)
	}
	return line
}

func (m SegmentsModel) statusLine() string {
	if len(m.visible) == 0 {
		return fmt.Sprintf(" %s  no segments", m.title)
	}
	seg := m.segments[m.visible[m.cursor]]
	return fmt.Sprintf(" %s  %d/%d  %s %s  confidence %s  bytes %d..%d",
		m.title, m.cursor+1, len(m.visible),
		seg.Type, seg.Speaker, seg.Confidence, seg.Span.Start, seg.Span.End)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
