package utils

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
)

func SendErrorResponse(w http.ResponseWriter, status int, message string) {
	SendJSON(w, status, models.APIResponse{
		Status:  "error",
		Message: message,
	})
}

func SendSuccessResponse(w http.ResponseWriter, response models.APIResponse) {
	SendJSON(w, http.StatusOK, response)
}

func SendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// WantsJSON reports whether the client sent or expects JSON rather than a
// form post from a page.
func WantsJSON(r *http.Request) bool {
	return hasMediaType(r.Header.Get("Content-Type"), "application/json") ||
		hasMediaType(r.Header.Get("Accept"), "application/json")
}
