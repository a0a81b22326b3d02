package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

var (
	_ list.Item = queueItem{}
)

// queueItem wraps [models.PartyTrack] to implement [list.Item].
type queueItem struct {
	track *models.PartyTrack
}

func (i queueItem) FilterValue() string { return i.track.Title }
func (i queueItem) Title() string {
	if i.track.Status == models.TrackPlaying {
		return "▶ " + i.track.Title
	}
	return i.track.Title
}
func (i queueItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.track.Artist, shared.FormatDuration(i.track.DurationMS))
	if i.track.AddedBy != "" {
		desc = fmt.Sprintf("%s • added by %s", desc, i.track.AddedBy)
	}
	return desc
}

func queueItems(queue []*models.PartyTrack) []list.Item {
	items := make([]list.Item, 0, len(queue))
	for _, t := range queue {
		if t.Status == models.TrackPlayed {
			continue
		}
		items = append(items, queueItem{track: t})
	}
	return items
}
