package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mmcdole/groundlink/internal/domain"
	"github.com/mmcdole/groundlink/internal/tui/styles"
)

// TransferList shows the listed transfer tasks with a progress bar each
type TransferList struct {
	tasks   []domain.TransferTask
	cursor  int
	width   int
	height  int
	focused bool
	bar     progress.Model
}

// NewTransferList creates an empty transfer panel
func NewTransferList() TransferList {
	bar := progress.New(
		progress.WithSolidFill(string(styles.Accent)),
		progress.WithoutPercentage(),
	)
	return TransferList{bar: bar}
}

// SetTasks replaces the listed tasks, keeping the cursor on the same task
func (t *TransferList) SetTasks(tasks []domain.TransferTask) {
	selected, _ := t.Selected()
	t.tasks = tasks
	for i, task := range tasks {
		if task.ID == selected.ID {
			t.cursor = i
			break
		}
	}
	t.clamp()
}

func (t *TransferList) SetSize(width, height int) {
	t.width, t.height = width, height
	t.bar.Width = width / 3
}

func (t *TransferList) SetFocused(focused bool) { t.focused = focused }

func (t *TransferList) MoveUp()   { t.cursor--; t.clamp() }
func (t *TransferList) MoveDown() { t.cursor++; t.clamp() }

func (t *TransferList) clamp() {
	if t.cursor >= len(t.tasks) {
		t.cursor = len(t.tasks) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

// Selected returns the task under the cursor
func (t *TransferList) Selected() (domain.TransferTask, bool) {
	if t.cursor < 0 || t.cursor >= len(t.tasks) {
		return domain.TransferTask{}, false
	}
	return t.tasks[t.cursor], true
}

// Len returns the number of listed tasks
func (t *TransferList) Len() int { return len(t.tasks) }

// View renders the panel
func (t TransferList) View() string {
	border := styles.InactiveBorder
	if t.focused {
		border = styles.ActiveBorder
	}
	inner := t.width - 2
	if inner < 10 {
		inner = 10
	}

	lines := []string{styles.TitleStyle.Render("Transfers")}
	if len(t.tasks) == 0 {
		lines = append(lines, styles.DimStyle.Render("Nothing running"))
	}
	for i, task := range t.tasks {
		lines = append(lines, t.renderTask(task, i == t.cursor && t.focused, inner)...)
	}
	return border.Width(inner).Height(t.height - 2).Render(strings.Join(lines, "\n"))
}

func (t TransferList) renderTask(task domain.TransferTask, selected bool, width int) []string {
	label := fmt.Sprintf("%-8s %s", task.Kind, stateText(task))
	if selected {
		label = styles.SelectedItemStyle.Render(styles.Pad(label, width))
	}

	counts := fmt.Sprintf("%3d%%", task.Progress)
	if task.ItemsTotal > 0 {
		counts += fmt.Sprintf("  %d/%d", task.ItemsDone, task.ItemsTotal)
	}
	if task.ETA > 0 && task.Active() {
		counts += "  eta " + task.ETA.String()
	}
	line2 := " " + t.bar.ViewAs(float64(task.Progress)/100) + " " + styles.DimStyle.Render(counts)

	var line3 string
	switch {
	case task.State == domain.TransferFailed && task.Detail != "":
		line3 = styles.ErrorStyle.Render(" " + styles.Truncate(task.Detail, width-1))
	case task.LastFile != nil:
		line3 = styles.DimStyle.Render(" " + styles.Truncate(
			fmt.Sprintf("%s (%s)", task.LastFile.Name, domain.FormatBytes(task.LastFile.Size)), width-1))
	case task.Current != nil:
		line3 = styles.DimStyle.Render(" " + styles.Truncate(task.Current.ID, width-1))
	}
	if line3 == "" {
		return []string{label, line2}
	}
	return []string{label, line2, line3}
}

func stateText(task domain.TransferTask) string {
	switch task.State {
	case domain.TransferComplete:
		return styles.SuccessStyle.Render(task.State.String())
	case domain.TransferFailed:
		return styles.ErrorStyle.Render(task.State.String() + " " + string(task.Reason))
	case domain.TransferPending:
		return styles.DimStyle.Render(task.State.String())
	default:
		return styles.AccentStyle.Render(task.State.String())
	}
}
