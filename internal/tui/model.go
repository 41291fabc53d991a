package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qbank/internal/domain"
	"qbank/internal/retrieval"
)

// SearchPort is the TUI-facing subset of the question service.
type SearchPort interface {
	Search(ctx context.Context, p domain.Profile, k int) (retrieval.Result, error)
}

type field int

const (
	fieldQuery field = iota
	fieldMarks
	fieldDifficulty
	fieldCognitive
	fieldCount
)

var markChoices = []domain.Marks{1, 2, 3, 5}

// Model is the Bubble Tea model for the search browser.
type Model struct {
	service  SearchPort
	topK     int
	input    textinput.Model
	viewport viewport.Model
	profile  domain.Profile
	focus    field
	result   retrieval.Result
	info     string
	status   string
	cursor   int
	ready    bool
}

// New creates a browser starting from the given default profile. info is shown under the header.
func New(service SearchPort, defaults domain.Profile, topK int, info string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a topic and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		topK:     topK,
		input:    ti,
		viewport: vp,
		profile:  defaults,
		info:     info,
		status:   "Tab: switch field  ←/→: change value  Enter: search  ↑/↓: browse",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // header, info, profile; status; spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			m.setFocus((m.focus + 1) % fieldCount)
			return m, nil
		case "shift+tab":
			m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, nil
		case "left", "right":
			if m.focus != fieldQuery {
				step := 1
				if msg.String() == "left" {
					step = -1
				}
				m.cycleValue(step)
				return m, nil
			}
		case "enter":
			m.profile.Query = strings.TrimSpace(m.input.Value())
			if m.profile.Query != "" {
				m.search()
				return m, nil
			}
		case "down":
			if n := len(m.result.Candidates); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.result.Candidates); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	if m.focus != fieldQuery {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f field) {
	m.focus = f
	if f == fieldQuery {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) cycleValue(step int) {
	switch m.focus {
	case fieldMarks:
		m.profile.Marks = markChoices[next(indexOf(markChoices, m.profile.Marks), step, len(markChoices))]
	case fieldDifficulty:
		m.profile.Difficulty = domain.Difficulties[next(indexOf(domain.Difficulties, m.profile.Difficulty), step, len(domain.Difficulties))]
	case fieldCognitive:
		m.profile.Cognitive = domain.CognitiveLevels[next(indexOf(domain.CognitiveLevels, m.profile.Cognitive), step, len(domain.CognitiveLevels))]
	}
}

func indexOf[T comparable](xs []T, v T) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

// next steps through n choices with wraparound; an unknown current value starts at the first choice.
func next(i, step, n int) int {
	if i < 0 {
		return 0
	}
	return (i + step + n) % n
}

func (m *Model) search() {
	res, err := m.service.Search(context.Background(), m.profile, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.result = retrieval.Result{}
	} else {
		m.status = fmt.Sprintf("%d questions for %q (tier: %s)", len(res.Candidates), m.profile.Query, res.Tier)
		m.result = res
		m.cursor = 0
	}
	m.viewport.SetContent(m.renderCurrentResult())
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Question Bank Search")
	info := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.info)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + info + "\n" + m.renderProfile() + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderProfile() string {
	parts := []struct {
		f     field
		label string
		value string
	}{
		{fieldMarks, "marks", m.profile.Marks.String()},
		{fieldDifficulty, "difficulty", string(m.profile.Difficulty)},
		{fieldCognitive, "cognitive", string(m.profile.Cognitive)},
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		text := p.label + ": " + p.value
		if m.focus == p.f {
			text = focusStyle.Render("[" + text + "]")
		}
		out[i] = text
	}
	return strings.Join(out, "   ")
}

func (m Model) renderCurrentResult() string {
	cs := m.result.Candidates
	if len(cs) == 0 {
		return "No results yet."
	}
	c := cs[m.cursor]
	q := c.Question
	title := fmt.Sprintf("Question %d/%d  score=%.3f", m.cursor+1, len(cs), c.Score)
	meta := fmt.Sprintf("%s / %s  |  %s marks  |  %s  |  %s", q.Topic, q.Subtopic, q.Marks, q.Difficulty, q.CognitiveLevel)
	body := highlightTerms(q.Text, m.profile.Query)
	return title + "\n" + metaStyle.Render(meta) + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	focusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightTerms emphasises the words of text that also occur in query.
func highlightTerms(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	return unicodeWordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := qTokens[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
