package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

// View implements tea.Model
func (m Model) View() string {
	if !m.Ready {
		return "Waiting for devices..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	if bar := m.FilterBar.View(); bar != "" {
		sections = append(sections, bar)
	}
	right := m.Transfers.View()
	if m.showInspector {
		right = lipgloss.JoinVertical(lipgloss.Left, m.Inspector.View(), right)
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.Catalog.View(), right)
	if m.confirm != ConfirmNone {
		body = lipgloss.Place(m.width, lipgloss.Height(body), lipgloss.Center, lipgloss.Center, m.renderConfirm())
	}
	sections = append(sections, body, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	drone := renderDevice("drone", m.Drone)
	remote := renderDevice("rc", m.Remote)

	store := ""
	switch m.StoreInfo.Indexing {
	case domain.IndexingInProgress:
		store = styles.WarnStyle.Render("indexing")
	case domain.IndexingIndexed:
		store = styles.DimStyle.Render(fmt.Sprintf("store %d photos, %d videos",
			m.StoreInfo.PhotoCount, m.StoreInfo.VideoCount))
	}

	return strings.Join([]string{drone, remote, store}, "   ")
}

func renderDevice(label string, d DeviceStatus) string {
	icon := styles.DimStyle.Render(styles.OfflineChar)
	state := styles.DimStyle.Render(string(d.State))
	if d.State == domain.StateConnected {
		icon = styles.SuccessStyle.Render(styles.ConnectedChar)
		state = styles.SuccessStyle.Render(string(d.State))
	}

	name := styles.BadgeStyle.Render(label)
	if !d.Identity.Present() {
		name = styles.DimBadgeStyle.Render(label)
	}

	battery := styles.SubtitleStyle.Render(d.Battery.String())
	if d.Battery.Known && d.Battery.Percent <= 20 {
		battery = styles.ErrorStyle.Render(d.Battery.String())
	}

	return fmt.Sprintf("%s %s %s %s %s", name, icon, styles.TitleStyle.Render(d.Identity.String()), state, battery)
}

func (m Model) renderFooter() string {
	if m.status != "" {
		if m.statusIsErr {
			return styles.ErrorStyle.Render(m.status)
		}
		return styles.AccentStyle.Render(m.status)
	}

	parts := make([]string, 0, len(m.keys.ShortHelp())+1)
	if n := m.Catalog.Marked(); n > 0 {
		parts = append(parts, styles.BadgeStyle.Render(fmt.Sprintf("%d marked", n)))
	}
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderConfirm() string {
	var title, body string
	switch m.confirm {
	case ConfirmWipe:
		title = "Wipe drone media?"
		body = fmt.Sprintf("All %d items on the drone will be erased.", m.Catalog.Snapshot().Len())
	case ConfirmDelete:
		title = "Delete from drone?"
		body = fmt.Sprintf("%d item(s) will be erased from the drone.", len(m.pendingIDs))
	}
	hint := styles.HelpKeyStyle.Render("y") + styles.HelpDescStyle.Render(" confirm  ") +
		styles.HelpKeyStyle.Render("n") + styles.HelpDescStyle.Render(" cancel")
	return styles.ModalStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(title),
		body,
		"",
		hint,
	))
}

func (m Model) renderHelp() string {
	var cols []string
	for _, group := range m.keys.FullHelp() {
		var lines []string
		for _, b := range group {
			h := b.Help()
			lines = append(lines, styles.HelpKeyStyle.Render(styles.Pad(h.Key, 8))+styles.HelpDescStyle.Render(h.Desc))
		}
		cols = append(cols, lipgloss.NewStyle().MarginRight(4).Render(strings.Join(lines, "\n")))
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("Keys"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
		"",
		styles.DimStyle.Render("press any key to close"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
