package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ringpong/internal/game"
)

// ValidateRoomCode rejects requests whose {code} cannot be a room code and
// any query parameters, which no room endpoint accepts.
func ValidateRoomCode(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			http.Error(w, "Invalid parameter", http.StatusBadRequest)
			return
		}

		code := game.NormalizeCode(chi.URLParam(r, "code"))
		if !validCode(code) {
			http.Error(w, "Invalid room code", http.StatusBadRequest)
			return
		}

		next(w, r)
	}
}

func validCode(code string) bool {
	if len(code) != game.RoomCodeLength {
		return false
	}
	for _, c := range code {
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_') {
			return false
		}
	}
	return true
}
