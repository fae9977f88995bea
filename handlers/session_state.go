package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/middleware"
	"megatrade-web/models"
	"megatrade-web/services/subscriptions"
)

const dialogStateKey = "subscription_dialogs"

// dialogState is the part of the subscription view that outlives a request.
// Tiers and membership are always fetched fresh; only the plan id of the last
// membership seen is kept so a cancellation can be attributed to it.
type dialogState struct {
	PaymentDialogOpen bool                `json:"paymentDialogOpen"`
	FreeDialogOpen    bool                `json:"freeDialogOpen"`
	Selected          models.SelectedPlan `json:"selected"`
	MembershipPlanID  string              `json:"membershipPlanId,omitempty"`
}

func identityFrom(r *http.Request) *models.Identity {
	return middleware.IdentityFromContext(r.Context())
}

func userIDFrom(r *http.Request) string {
	if identity := identityFrom(r); identity != nil {
		return identity.UserID
	}
	return ""
}

// session returns the request's session. A cookie that fails to decode yields
// a fresh session rather than an error.
func session(store sessions.Store, r *http.Request) *sessions.Session {
	s, err := store.Get(r, middleware.SessionName)
	if err != nil {
		log.Printf("Discarding unreadable session cookie: %v", err)
	}
	if s == nil {
		s = sessions.NewSession(store, middleware.SessionName)
	}
	return s
}

func restoreView(s *sessions.Session) *subscriptions.View {
	v := &subscriptions.View{Phase: subscriptions.PhaseLoading}
	raw, ok := s.Values[dialogStateKey].(string)
	if !ok || raw == "" {
		return v
	}
	var state dialogState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Printf("Discarding unreadable dialog state: %v", err)
		return v
	}
	v.PaymentDialogOpen = state.PaymentDialogOpen
	v.FreeDialogOpen = state.FreeDialogOpen
	v.Selected = state.Selected
	v.Membership.PlanID = state.MembershipPlanID
	return v
}

func storeView(s *sessions.Session, v *subscriptions.View) {
	raw, err := json.Marshal(dialogState{
		PaymentDialogOpen: v.PaymentDialogOpen,
		FreeDialogOpen:    v.FreeDialogOpen,
		Selected:          v.Selected,
		MembershipPlanID:  v.Membership.PlanID,
	})
	if err != nil {
		log.Printf("Error encoding dialog state: %v", err)
		return
	}
	s.Values[dialogStateKey] = string(raw)
}

func addFlashes(s *sessions.Session, notes []models.Notification) {
	for _, n := range notes {
		raw, err := json.Marshal(n)
		if err != nil {
			continue
		}
		s.AddFlash(string(raw))
	}
}

func takeFlashes(s *sessions.Session) []models.Notification {
	var notes []models.Notification
	for _, f := range s.Flashes() {
		raw, ok := f.(string)
		if !ok {
			continue
		}
		var n models.Notification
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			notes = append(notes, n)
		}
	}
	return notes
}

func saveSession(w http.ResponseWriter, r *http.Request, s *sessions.Session) {
	if err := s.Save(r, w); err != nil {
		log.Printf("Error saving session: %v", err)
	}
}
