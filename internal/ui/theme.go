package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/amply/internal/models"
)

// theme styles the watch screen. Colors adapt to light and dark terminals.
type theme struct {
	header  lipgloss.Style
	meta    lipgloss.Style
	notice  lipgloss.Style
	failure lipgloss.Style
	badges  map[models.PartyStatus]lipgloss.Style
}

var watchTheme = newTheme()

func adaptive(light, dark string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
}

func newTheme() theme {
	return theme{
		header:  adaptive("#3C2A8F", "#B4A2FF").Bold(true),
		meta:    adaptive("#767676", "#8A8A8A"),
		notice:  adaptive("#B35C00", "#FFB454"),
		failure: adaptive("#C0152F", "#FF5F6D").Bold(true),
		badges: map[models.PartyStatus]lipgloss.Style{
			models.PartyScheduled: adaptive("#1F5FA8", "#6CB6FF"),
			models.PartyLive:      adaptive("#0A7A3F", "#3DDC84").Bold(true).Reverse(true).Padding(0, 1),
			models.PartyEnded:     adaptive("#767676", "#8A8A8A").Strikethrough(true),
		},
	}
}

// badge renders a party status. Unknown statuses fall back to the meta style.
func (t theme) badge(status models.PartyStatus) string {
	if s, ok := t.badges[status]; ok {
		return s.Render(string(status))
	}
	return t.meta.Render(string(status))
}

// placeholder renders the dimmed text shown in place of an empty section.
func (t theme) placeholder(text string) string {
	return t.meta.Italic(true).Render(text)
}
