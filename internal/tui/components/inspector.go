package components

import (
	"fmt"
	"strings"

	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

// Layout constants for inspector
const (
	InspectorBorderHeight     = 2
	InspectorScrollIndicators = 2
)

// inspectorContent holds the three-zone layout content
type inspectorContent struct {
	header string // fixed top
	body   string // scrollable middle
	footer string // fixed bottom
}

// Inspector displays the details of the selected media item
type Inspector struct {
	item       *domain.MediaItem
	hasThumb   bool
	width      int
	height     int
	offset     int // scroll offset
	maxVisible int // max visible lines
}

// NewInspector creates an empty inspector
func NewInspector() Inspector {
	return Inspector{}
}

// SetItem sets the item to display. Scrolling resets when the item changes.
func (i *Inspector) SetItem(item domain.MediaItem, hasThumb bool) {
	if i.item == nil || i.item.ID != item.ID {
		i.offset = 0
	}
	i.item = &item
	i.hasThumb = hasThumb
}

// ClearItem empties the inspector
func (i *Inspector) ClearItem() {
	i.item = nil
	i.offset = 0
}

// SetSize updates the component dimensions
func (i *Inspector) SetSize(width, height int) {
	i.width = width
	i.height = height
	// Border, scroll indicators, title and a blank line
	i.maxVisible = height - InspectorBorderHeight - InspectorScrollIndicators - 2
	if i.maxVisible < 1 {
		i.maxVisible = 1
	}
}

// HasItem returns true if there is an item to display
func (i Inspector) HasItem() bool {
	return i.item != nil
}

func (i *Inspector) ScrollUp() {
	if i.offset > 0 {
		i.offset--
	}
}

func (i *Inspector) ScrollDown() {
	if i.offset < i.maxOffset() {
		i.offset++
	}
}

// maxOffset is the last scroll position that still fills the body
func (i Inspector) maxOffset() int {
	content := i.render(max(i.width-3, 10))
	available := i.maxVisible - len(splitLines(content.header)) - len(splitLines(content.footer))
	return max(len(splitLines(content.body))-max(available, 1), 0)
}

// View renders the component
func (i Inspector) View() string {
	style := styles.InactiveBorder

	// Border takes 2 chars (1 each side), leave 1 char safety margin
	contentWidth := i.width - 3
	if contentWidth < 10 {
		contentWidth = 10
	}
	content := i.render(contentWidth)

	headerLines := splitLines(content.header)
	footerLines := splitLines(content.footer)
	bodyLines := splitLines(content.body)

	availableForBody := i.maxVisible - len(headerLines) - len(footerLines)
	if availableForBody < 1 {
		availableForBody = 1
	}

	offset := min(i.offset, max(len(bodyLines)-availableForBody, 0))
	end := min(offset+availableForBody, len(bodyLines))
	visibleBody := bodyLines[offset:end]

	up, down := " ", " "
	if offset > 0 {
		up = styles.DimStyle.Render("↑ more")
	}
	if end < len(bodyLines) {
		down = styles.DimStyle.Render("↓ more")
	}

	parts := []string{styles.AccentStyle.Render(styles.Truncate("Info", contentWidth)), ""}
	if content.header != "" {
		parts = append(parts, headerLines...)
	}
	parts = append(parts, up)
	parts = append(parts, visibleBody...)
	for j := len(visibleBody); j < availableForBody; j++ {
		parts = append(parts, "")
	}
	parts = append(parts, down)
	if content.footer != "" {
		parts = append(parts, footerLines...)
	}

	frameW, frameH := style.GetFrameSize()
	return style.
		Width(i.width - frameW).
		Height(i.height - frameH).
		Render(strings.Join(parts, "\n"))
}

func (i Inspector) render(width int) inspectorContent {
	if i.item == nil {
		return inspectorContent{body: styles.DimStyle.Render("No item selected")}
	}
	item := *i.item

	var header strings.Builder
	header.WriteString(styles.TitleStyle.Render(styles.Truncate(item.Name, width)))
	header.WriteString("\n")
	meta := []string{string(item.Kind), item.FormattedSize()}
	if d := item.FormattedDuration(); d != "" {
		meta = append(meta, d)
	}
	header.WriteString(styles.SubtitleStyle.Render(strings.Join(meta, " · ")))

	var body []string
	body = append(body, styles.DimStyle.Render(fmt.Sprintf("%d resource(s)", len(item.Resources))))
	for _, r := range item.Resources {
		line := fmt.Sprintf("%s  %s", styles.Truncate(r.ID, width-12), domain.FormatBytes(r.Size))
		body = append(body, styles.NormalItemStyle.Render(line))
	}

	footer := styles.DimStyle.Render("thumbnail: ") + styles.WarnStyle.Render("missing")
	if i.hasThumb {
		footer = styles.DimStyle.Render("thumbnail: ") + styles.SuccessStyle.Render("yes")
	}
	footer += "\n" + styles.DimStyle.Render(styles.Truncate("id "+item.ID, width))

	return inspectorContent{
		header: header.String(),
		body:   strings.Join(body, "\n"),
		footer: footer,
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
