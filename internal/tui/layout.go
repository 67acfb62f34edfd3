package tui

// Layout proportions
const (
	CatalogPercent   = 60
	InspectorPercent = 50 // Share of the right column when the inspector is open
	MinPanelWidth    = 24

	// Header and footer lines
	ChromeHeight = 2
)

// panelLayout holds calculated panel sizes for the View
type panelLayout struct {
	catalogWidth    int
	transfersWidth  int
	bodyHeight      int
	inspectorHeight int
	transfersHeight int
}

func (m Model) calculateLayout() panelLayout {
	l := panelLayout{}
	l.catalogWidth = max(m.width*CatalogPercent/100, MinPanelWidth)
	l.transfersWidth = max(m.width-l.catalogWidth, MinPanelWidth)

	l.bodyHeight = m.height - ChromeHeight
	if m.FilterBar.View() != "" {
		l.bodyHeight--
	}
	if l.bodyHeight < 5 {
		l.bodyHeight = 5
	}

	l.transfersHeight = l.bodyHeight
	if m.showInspector {
		l.inspectorHeight = l.bodyHeight * InspectorPercent / 100
		l.transfersHeight = l.bodyHeight - l.inspectorHeight
	}
	return l
}

// resize pushes the current layout into the panels
func (m *Model) resize() {
	l := m.calculateLayout()
	m.Catalog.SetSize(l.catalogWidth, l.bodyHeight)
	m.Transfers.SetSize(l.transfersWidth, l.transfersHeight)
	m.Inspector.SetSize(l.transfersWidth, l.inspectorHeight)
}
