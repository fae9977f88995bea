package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/services/subscriptions"
	"megatrade-web/utils"
)

const maxCallbackBytes = 64 << 10

// PaymentHandler receives the checkout button callbacks.
type PaymentHandler struct {
	orchestrator *subscriptions.Orchestrator
	store        sessions.Store
}

func NewPaymentHandler(o *subscriptions.Orchestrator, store sessions.Store) *PaymentHandler {
	return &PaymentHandler{orchestrator: o, store: store}
}

func decodeCallback(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// Approve completes a checkout the buyer approved.
func (h *PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var approval models.PaymentApproval
	if err := decodeCallback(r, &approval); err != nil {
		log.Printf("Error decoding payment approval: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(approval.SubscriptionID) == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "subscriptionID is required")
		return
	}

	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.ApprovePayment(r.Context(), userIDFrom(r), v, approval)
	h.respond(w, r, s, v)
}

// Error records a failure raised by the checkout button.
func (h *PaymentHandler) Error(w http.ResponseWriter, r *http.Request) {
	var failure models.PaymentFailure
	if err := decodeCallback(r, &failure); err != nil {
		log.Printf("Error decoding payment failure: %v", err)
	}

	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.PaymentFailed(r.Context(), userIDFrom(r), v, failure.Message)
	h.respond(w, r, s, v)
}

// Cancel records that the buyer closed the checkout.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.PaymentCancelled(r.Context(), userIDFrom(r), v)
	h.respond(w, r, s, v)
}

func (h *PaymentHandler) respond(w http.ResponseWriter, r *http.Request, s *sessions.Session, v *subscriptions.View) {
	if r.Context().Err() != nil {
		log.WithField("user_id", userIDFrom(r)).Debugf("Client went away during %s", r.URL.Path)
		return
	}

	notes := v.TakeNotifications()
	storeView(s, v)
	addFlashes(s, notes)
	saveSession(w, r, s)

	if notes == nil {
		notes = []models.Notification{}
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Payment callback processed",
		Data: models.PaymentCallbackResponse{
			PaymentDialogOpen: v.PaymentDialogOpen,
			Notifications:     notes,
			Redirect:          subscriptionsPath,
		},
	})
}
