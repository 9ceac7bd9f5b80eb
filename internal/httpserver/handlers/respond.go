package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"aimarket/internal/models"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondStatus writes a non-200 status. The Content-Type header must be set
// before WriteHeader or it is dropped.
func respondStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// respondError maps the failure taxonomy to a status code with generic text.
// Raw store/provider detail never reaches the client.
func respondError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, models.ErrAuth):
		http.Error(w, "authentication failed", http.StatusUnauthorized)
	default:
		http.Error(w, "failed to "+action+". Please try again", http.StatusInternalServerError)
	}
}
