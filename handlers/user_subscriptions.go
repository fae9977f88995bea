package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/services/subscriptions"
	"megatrade-web/utils"
)

const (
	subscriptionsPath   = "/subscriptions"
	sponsorCodeRequired = "Sponsor code is required"
)

// PayPalSettings configure the checkout button rendered in the payment dialog.
type PayPalSettings struct {
	ClientID string
}

// SDKURL is the PayPal JS SDK address for subscription checkouts.
func (p PayPalSettings) SDKURL() string {
	q := url.Values{}
	q.Set("client-id", p.ClientID)
	q.Set("vault", "true")
	q.Set("intent", "subscription")
	return "https://www.paypal.com/sdk/js?" + q.Encode()
}

type SubscriptionHandler struct {
	orchestrator *subscriptions.Orchestrator
	store        sessions.Store
	renderer     *Renderer
	paypal       PayPalSettings
}

func NewSubscriptionHandler(o *subscriptions.Orchestrator, store sessions.Store, renderer *Renderer, paypal PayPalSettings) *SubscriptionHandler {
	return &SubscriptionHandler{
		orchestrator: o,
		store:        store,
		renderer:     renderer,
		paypal:       paypal,
	}
}

type subscriptionsPage struct {
	View         *subscriptions.View
	PayPalSDKURL string
}

// viewResponse is the JSON form of the page for script clients.
type viewResponse struct {
	Phase             subscriptions.Phase   `json:"phase"`
	Subscriptions     []models.Subscription `json:"subscriptions"`
	Membership        models.Membership     `json:"membership"`
	PaymentDialogOpen bool                  `json:"paymentDialogOpen"`
	FreeDialogOpen    bool                  `json:"freeDialogOpen"`
	Selected          models.SelectedPlan   `json:"selected"`
	Notifications     []models.Notification `json:"notifications"`
}

func toViewResponse(v *subscriptions.View, notes []models.Notification) viewResponse {
	if notes == nil {
		notes = []models.Notification{}
	}
	return viewResponse{
		Phase:             v.Phase,
		Subscriptions:     v.Subscriptions,
		Membership:        v.Membership,
		PaymentDialogOpen: v.PaymentDialogOpen,
		FreeDialogOpen:    v.FreeDialogOpen,
		Selected:          v.Selected,
		Notifications:     notes,
	}
}

// List renders the subscription page for the signed-in user.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.Load(r.Context(), userIDFrom(r), v)

	if r.Context().Err() != nil {
		log.WithField("user_id", userIDFrom(r)).Debug("Client went away while loading subscriptions")
		return
	}

	storeView(s, v)
	notes := append(takeFlashes(s), v.TakeNotifications()...)
	saveSession(w, r, s)

	if utils.WantsJSON(r) {
		utils.SendSuccessResponse(w, models.APIResponse{
			Status:  "success",
			Message: "Subscriptions loaded",
			Data:    toViewResponse(v, notes),
		})
		return
	}

	h.renderer.Render(w, r, http.StatusOK, "subscriptions", pageData{
		Title:         "Subscriptions",
		Notifications: notes,
		Content: subscriptionsPage{
			View:         v,
			PayPalSDKURL: h.paypal.SDKURL(),
		},
	})
}

// Select opens the dialog for the tier chosen by plan id or list position.
func (h *SubscriptionHandler) Select(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.Load(r.Context(), userIDFrom(r), v)

	found := false
	if planID := strings.TrimSpace(r.PostForm.Get("planId")); planID != "" {
		found = h.orchestrator.SelectPlan(v, planID)
	}
	if !found {
		if i, err := strconv.Atoi(r.PostForm.Get("index")); err == nil {
			found = h.orchestrator.SelectIndex(v, i)
		}
	}
	if !found && len(v.Notifications) == 0 {
		v.Notifications = append(v.Notifications, models.Notification{
			Variant: models.NotificationWarning,
			Message: "That subscription is no longer available",
		})
	}

	h.finish(w, r, s, v)
}

func (h *SubscriptionHandler) ConfirmFree(w http.ResponseWriter, r *http.Request) {
	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.ConfirmFree(r.Context(), userIDFrom(r), v)
	h.finish(w, r, s, v)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	s := session(h.store, r)
	v := restoreView(s)
	h.orchestrator.Cancel(r.Context(), userIDFrom(r), v)
	h.finish(w, r, s, v)
}

// CloseDialogs closes the payment dialog, the free dialog or both.
func (h *SubscriptionHandler) CloseDialogs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	s := session(h.store, r)
	v := restoreView(s)
	switch r.PostForm.Get("dialog") {
	case "payment":
		h.orchestrator.ClosePaymentDialog(v)
	case "free":
		h.orchestrator.CloseFreeDialog(v)
	default:
		h.orchestrator.CloseDialogs(v)
	}
	h.finish(w, r, s, v)
}

func (h *SubscriptionHandler) RedeemSponsor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	req := models.SponsorRequest{
		Code:         r.PostForm.Get("code"),
		Duration:     r.PostForm.Get("duration"),
		DurationPick: r.PostForm.Get("durationPick"),
	}
	if strings.TrimSpace(req.Code) == "" && utils.WantsJSON(r) {
		utils.SendErrorResponse(w, http.StatusBadRequest, sponsorCodeRequired)
		return
	}

	s := session(h.store, r)
	v := restoreView(s)
	if strings.TrimSpace(req.Code) == "" {
		v.Notifications = append(v.Notifications, models.Notification{
			Variant: models.NotificationError,
			Message: sponsorCodeRequired,
		})
	} else {
		h.orchestrator.RedeemSponsor(r.Context(), userIDFrom(r), v, req)
	}
	h.finish(w, r, s, v)
}

// finish persists the dialog state and hands notifications to the next page
// view, or returns everything at once to a script client. Nothing is written
// once the client has gone away.
func (h *SubscriptionHandler) finish(w http.ResponseWriter, r *http.Request, s *sessions.Session, v *subscriptions.View) {
	if r.Context().Err() != nil {
		log.WithField("user_id", userIDFrom(r)).Debugf("Client went away during %s", r.URL.Path)
		return
	}

	storeView(s, v)
	notes := v.TakeNotifications()

	if utils.WantsJSON(r) {
		saveSession(w, r, s)
		utils.SendSuccessResponse(w, models.APIResponse{
			Status:  "success",
			Message: "Subscription view updated",
			Data:    toViewResponse(v, notes),
		})
		return
	}

	addFlashes(s, notes)
	saveSession(w, r, s)
	http.Redirect(w, r, subscriptionsPath, http.StatusSeeOther)
}
