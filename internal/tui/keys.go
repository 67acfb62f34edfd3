package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the monitor
type KeyMap struct {
	// Navigation
	Up     key.Binding
	Down   key.Binding
	Home   key.Binding
	End    key.Binding
	Switch key.Binding

	// Catalog
	Mark     key.Binding
	Download key.Binding
	Delete   key.Binding
	Wipe     key.Binding
	Filter   key.Binding
	Refresh  key.Binding
	Inspect  key.Binding

	// Inspector
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Transfers
	Cancel key.Binding
	Ack    key.Binding
	AckAll key.Binding

	// Application
	Quit   key.Binding
	Help   key.Binding
	Escape key.Binding

	// Confirmations
	Confirm key.Binding
	Deny    key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Home: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "go to top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "go to bottom"),
		),
		Switch: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch panel"),
		),

		Mark: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "mark"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete"),
		),
		Wipe: key.NewBinding(
			key.WithKeys("W"),
			key.WithHelp("W", "wipe media"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Inspect: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "details"),
		),

		ScrollUp: key.NewBinding(
			key.WithKeys("K", "pgup"),
			key.WithHelp("K", "scroll details up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("J", "pgdown"),
			key.WithHelp("J", "scroll details down"),
		),

		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel transfer"),
		),
		Ack: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "dismiss"),
		),
		AckAll: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "dismiss finished"),
		),

		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Deny: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mark, k.Download, k.Delete, k.Filter, k.Switch, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped by panel
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Home, k.End, k.Switch},
		{k.Mark, k.Download, k.Delete, k.Wipe, k.Filter, k.Refresh, k.Inspect, k.ScrollDown},
		{k.Cancel, k.Ack, k.AckAll},
		{k.Help, k.Escape, k.Quit},
	}
}

// Keys is the global key bindings instance
var Keys = DefaultKeyMap()
