package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/replay/internal/models"
)

var _ list.Item = userItem{}

// userItem wraps [models.User] to implement [list.Item].
type userItem struct {
	user *models.User
}

func (i userItem) FilterValue() string { return i.user.SpotifyID() }

func (i userItem) Title() string {
	if name := i.user.DisplayName(); name != "" {
		return name
	}
	return i.user.SpotifyID()
}

func (i userItem) Description() string {
	desc := i.user.SpotifyID()
	if at := i.user.TokenExpiresAt(); at != nil {
		desc = fmt.Sprintf("%s • token expires %s", desc, at.Format("Jan 2 15:04"))
	}
	return desc
}
