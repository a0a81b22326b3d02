package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/shared"
)

type profileRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	WorldID   string `json:"world_id"`
}

func (a *App) getMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	user, err := a.users.Get(r.Context(), userID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// putMe creates the caller's profile on first call and updates it afterwards.
func (a *App) putMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	userID, _ := UserID(r.Context())
	user := models.NewUser(userID, req.Username)
	user.AvatarURL = req.AvatarURL
	user.WorldID = req.WorldID
	if err := a.users.Upsert(r.Context(), user); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

const maxJSONBody = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
