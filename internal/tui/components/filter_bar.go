package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

// FilterBar is the inline fuzzy filter input above the catalog
type FilterBar struct {
	active bool
	input  textinput.Model
}

// NewFilterBar creates a new filter bar
func NewFilterBar() FilterBar {
	ti := textinput.New()
	ti.Placeholder = "filter media..."
	ti.CharLimit = 64
	ti.Width = 30
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return FilterBar{input: ti}
}

// Show focuses the input, keeping the current query
func (f *FilterBar) Show() {
	f.active = true
	f.input.Focus()
}

// Clear empties and hides the filter
func (f *FilterBar) Clear() {
	f.active = false
	f.input.SetValue("")
	f.input.Blur()
}

// Active reports whether the input has focus
func (f FilterBar) Active() bool { return f.active }

// Query returns the current filter text
func (f FilterBar) Query() string { return f.input.Value() }

// Update handles input events. It returns whether the query changed.
func (f FilterBar) Update(msg tea.Msg) (FilterBar, tea.Cmd, bool) {
	if !f.active {
		return f, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			// Keep the query, return focus to the list
			f.active = false
			f.input.Blur()
			return f, nil, false
		case "esc":
			changed := f.input.Value() != ""
			f.Clear()
			return f, nil, changed
		}
	}

	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd, f.input.Value() != before
}

// View renders the bar; empty when there is no query and no focus
func (f FilterBar) View() string {
	if !f.active && f.input.Value() == "" {
		return ""
	}
	return f.input.View()
}
