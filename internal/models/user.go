package models

import (
	"net/url"
	"strings"
	"time"
)

const MaxUsernameLength = 32

// User is the profile row for a Supabase auth user. ID is the auth uid.
type User struct {
	ID        string     `json:"id"`
	Sequence  int        `json:"-"`
	WorldID   string     `json:"world_id,omitempty"`
	Username  string     `json:"username"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// NewUser creates a profile for the auth user id.
func NewUser(id, username string) *User {
	now := time.Now().UTC()
	return &User{ID: id, Username: strings.TrimSpace(username), CreatedAt: now, UpdatedAt: now}
}

func (u *User) Key() string { return u.ID }

func (u *User) Validate() error {
	if u.ID == "" {
		return invalid("user id is required")
	}
	if err := checkLength("username", u.Username, 1, MaxUsernameLength); err != nil {
		return err
	}
	if u.AvatarURL != "" {
		parsed, err := url.Parse(u.AvatarURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalid("avatar_url must be an absolute http(s) url")
		}
	}
	return nil
}
