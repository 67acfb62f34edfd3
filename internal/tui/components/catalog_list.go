package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/groundlink/internal/catalog"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

// CatalogList shows the rows of the current catalog snapshot with a cursor
// and a set of marked items.
type CatalogList struct {
	snapshot domain.CatalogSnapshot
	rows     []catalog.Match
	marked   map[string]bool
	cursor   int
	offset   int
	width    int
	height   int
	focused  bool
}

// NewCatalogList creates an empty list
func NewCatalogList() CatalogList {
	return CatalogList{marked: make(map[string]bool)}
}

// SetSnapshot replaces the snapshot and its visible rows. Marks on items that
// are gone are dropped.
func (c *CatalogList) SetSnapshot(snap domain.CatalogSnapshot, rows []catalog.Match) {
	c.snapshot = snap
	for id := range c.marked {
		if _, ok := snap.Find(id); !ok {
			delete(c.marked, id)
		}
	}
	c.SetRows(rows)
}

// SetRows replaces the visible rows, e.g. after a filter change
func (c *CatalogList) SetRows(rows []catalog.Match) {
	c.rows = rows
	c.clamp()
}

// Snapshot returns the displayed snapshot
func (c *CatalogList) Snapshot() domain.CatalogSnapshot { return c.snapshot }

// Len returns the number of visible rows
func (c *CatalogList) Len() int { return len(c.rows) }

func (c *CatalogList) SetSize(width, height int) {
	c.width, c.height = width, height
	c.clamp()
}

func (c *CatalogList) SetFocused(focused bool) { c.focused = focused }

func (c *CatalogList) MoveUp()   { c.cursor--; c.clamp() }
func (c *CatalogList) MoveDown() { c.cursor++; c.clamp() }
func (c *CatalogList) Top()      { c.cursor = 0; c.clamp() }
func (c *CatalogList) Bottom()   { c.cursor = len(c.rows) - 1; c.clamp() }

func (c *CatalogList) clamp() {
	if c.cursor >= len(c.rows) {
		c.cursor = len(c.rows) - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	visible := c.visibleRows()
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if visible > 0 && c.cursor >= c.offset+visible {
		c.offset = c.cursor - visible + 1
	}
}

func (c *CatalogList) visibleRows() int {
	// Title line plus border
	return c.height - 3
}

// Selected returns the item under the cursor
func (c *CatalogList) Selected() (domain.MediaItem, bool) {
	if c.cursor < 0 || c.cursor >= len(c.rows) {
		return domain.MediaItem{}, false
	}
	return c.rows[c.cursor].Item, true
}

// ToggleMark marks or unmarks the item under the cursor and moves down
func (c *CatalogList) ToggleMark() {
	item, ok := c.Selected()
	if !ok {
		return
	}
	if c.marked[item.ID] {
		delete(c.marked, item.ID)
	} else {
		c.marked[item.ID] = true
	}
	c.MoveDown()
}

// ClearMarks unmarks everything
func (c *CatalogList) ClearMarks() { c.marked = make(map[string]bool) }

// Marked returns how many items are marked
func (c *CatalogList) Marked() int { return len(c.marked) }

// Targets returns the marked item IDs in catalog order, or the item under
// the cursor when nothing is marked.
func (c *CatalogList) Targets() []string {
	if len(c.marked) == 0 {
		if item, ok := c.Selected(); ok {
			return []string{item.ID}
		}
		return nil
	}
	ids := make([]string, 0, len(c.marked))
	for _, item := range c.snapshot.Items {
		if c.marked[item.ID] {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// View renders the list
func (c CatalogList) View() string {
	border := styles.InactiveBorder
	if c.focused {
		border = styles.ActiveBorder
	}
	inner := c.width - 2
	if inner < 10 {
		inner = 10
	}

	var b strings.Builder
	title := styles.TitleStyle.Render("Media")
	if c.snapshot.Available() {
		title += styles.DimStyle.Render(fmt.Sprintf("  %d photos, %d videos",
			c.snapshot.Count(domain.MediaKindPhoto), c.snapshot.Count(domain.MediaKindVideo)))
	}
	b.WriteString(title)
	b.WriteString("\n")

	switch {
	case !c.snapshot.Available():
		b.WriteString(styles.DimStyle.Render("No drone media"))
	case len(c.rows) == 0 && c.snapshot.Len() == 0:
		b.WriteString(styles.DimStyle.Render("Media store is empty"))
	case len(c.rows) == 0:
		b.WriteString(styles.DimStyle.Render("No matches"))
	default:
		end := c.offset + c.visibleRows()
		if end > len(c.rows) || c.visibleRows() <= 0 {
			end = len(c.rows)
		}
		lines := make([]string, 0, end-c.offset)
		for i := c.offset; i < end; i++ {
			lines = append(lines, c.renderRow(c.rows[i], i == c.cursor && c.focused, inner))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return border.Width(inner).Height(c.height - 2).Render(b.String())
}

func (c CatalogList) renderRow(row catalog.Match, selected bool, width int) string {
	item := row.Item
	base := styles.NormalItemStyle
	if selected {
		base = styles.SelectedItemStyle
	}

	mark := styles.UnmarkedChar
	if c.marked[item.ID] {
		mark = styles.MarkedChar
	}
	thumb := styles.NoThumbChar
	if c.snapshot.Thumbnail(row.Index) != nil {
		thumb = styles.ThumbChar
	}

	meta := item.FormattedSize()
	if d := item.FormattedDuration(); d != "" {
		meta = d + "  " + meta
	}

	prefix := base.Render(" " + mark + " " + thumb + " ")
	suffix := base.Render(" " + meta + " ")
	nameWidth := width - lipgloss.Width(prefix) - lipgloss.Width(suffix)
	name := styles.Truncate(item.Name, nameWidth)
	matched := row.MatchedIndexes
	if name != item.Name {
		matched = nil
	}
	nameCol := styles.Highlight(name, matched, selected)
	if pad := nameWidth - lipgloss.Width(name); pad > 0 {
		nameCol += base.Render(strings.Repeat(" ", pad))
	}
	return prefix + nameCol + suffix
}
