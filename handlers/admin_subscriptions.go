package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"

	"megatrade-web/forms"
	"megatrade-web/models"
	"megatrade-web/services/api"
	"megatrade-web/utils"
)

const (
	newSubscriptionPath = "/admin/subscriptions/new"
	imageFileField      = "imageFile"
)

// EventLister reads the payment event ledger.
type EventLister interface {
	ListPaymentEvents(ctx context.Context, userID string, limit int) ([]models.PaymentEvent, error)
}

type AdminSubscriptionHandler struct {
	admin    api.AdminAPI
	schema   forms.Schema
	store    sessions.Store
	renderer *Renderer
	events   EventLister
	maxBody  int64
	maxFile  int64
}

func NewAdminSubscriptionHandler(admin api.AdminAPI, schema forms.Schema, store sessions.Store, renderer *Renderer, events EventLister) *AdminSubscriptionHandler {
	maxImage := int64(forms.DefaultImageMaxLength)
	for _, rule := range schema {
		if rule.Field == forms.FieldImage && rule.MaxLength > 0 {
			maxImage = int64(rule.MaxLength)
		}
	}
	return &AdminSubscriptionHandler{
		admin:    admin,
		schema:   schema,
		store:    store,
		renderer: renderer,
		events:   events,
		// leaves room for an oversized picture so the text fields still parse
		// and the upload alone can be rejected
		maxBody: maxImage*2 + 8<<20,
		// largest file whose data URI can still fit the image rule
		maxFile: maxImage * 3 / 4,
	}
}

type fieldView struct {
	Name      string
	Label     string
	MaxLength int
}

type adminFormPage struct {
	Form   *forms.State
	Fields []fieldView
}

func (h *AdminSubscriptionHandler) fields() []fieldView {
	out := make([]fieldView, 0, len(h.schema))
	for _, rule := range h.schema {
		out = append(out, fieldView{Name: rule.Field, Label: rule.Label, MaxLength: rule.MaxLength})
	}
	return out
}

func (h *AdminSubscriptionHandler) render(w http.ResponseWriter, r *http.Request, status int, state *forms.State, notes []models.Notification) {
	h.renderer.Render(w, r, status, "admin_subscription", pageData{
		Title:         "New subscription",
		Notifications: notes,
		Content:       adminFormPage{Form: state, Fields: h.fields()},
	})
}

// New renders an empty subscription form.
func (h *AdminSubscriptionHandler) New(w http.ResponseWriter, r *http.Request) {
	s := session(h.store, r)
	notes := takeFlashes(s)
	saveSession(w, r, s)

	h.render(w, r, http.StatusOK, forms.New(h.schema), notes)
}

// Create validates the posted form and sends it to the platform. An invalid
// form is rendered again with its field errors and never reaches the API.
func (h *AdminSubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		// past maxBody nothing of the form survives parsing
		log.Printf("Error parsing subscription form: %v", err)
		h.render(w, r, http.StatusBadRequest, forms.New(h.schema), []models.Notification{uploadFailedNote()})
		return
	}

	state, notes := h.stateFromRequest(r)

	// a rejected picture is never swapped for the one already on the form
	if !state.CanSubmit() || len(notes) > 0 {
		h.render(w, r, http.StatusUnprocessableEntity, state, notes)
		return
	}

	identity := identityFrom(r)
	res, err := state.Submit(r.Context(), h.admin, identity.AdminID)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		log.WithField("admin_id", identity.AdminID).Printf("Error creating subscription: %v", err)
		notes = append(notes, models.Notification{Variant: models.NotificationError, Message: api.UserMessage(err)})
		h.render(w, r, http.StatusBadGateway, state, notes)
		return
	}

	s := session(h.store, r)
	addFlashes(s, append(notes, models.Notification{Variant: models.NotificationSuccess, Message: res.Message}))
	saveSession(w, r, s)
	http.Redirect(w, r, newSubscriptionPath, http.StatusSeeOther)
}

func (h *AdminSubscriptionHandler) stateFromRequest(r *http.Request) (*forms.State, []models.Notification) {
	state := forms.New(h.schema)
	var notes []models.Notification

	for _, field := range h.schema.Fields() {
		if field == forms.FieldImage {
			continue
		}
		state.OnChange(field, r.FormValue(field))
	}

	if previous := r.FormValue(forms.FieldImage); previous != "" {
		state.OnChange(forms.FieldImage, previous)
	}

	if r.MultipartForm != nil {
		if file, header, err := r.FormFile(imageFileField); err == nil {
			defer file.Close()
			switch {
			case header.Size > h.maxFile:
				log.Printf("Rejected %d byte picture, limit is %d", header.Size, h.maxFile)
				notes = append(notes, uploadFailedNote())
			case state.OnUploadPicture(file) != nil:
				notes = append(notes, uploadFailedNote())
			}
		}
	}

	if state.Value(forms.FieldImage) == "" {
		state.OnChange(forms.FieldImage, "")
	}
	return state, notes
}

func uploadFailedNote() models.Notification {
	return models.Notification{Variant: models.NotificationError, Message: forms.UploadFailedMessage}
}

type validateRequest struct {
	Values    map[string]string `json:"values"`
	Touched   map[string]bool   `json:"touched"`
	IsChanged bool              `json:"isChanged"`
}

type validateResponse struct {
	Errors    map[string][]string `json:"errors"`
	Touched   map[string]bool     `json:"touched"`
	IsValid   bool                `json:"isValid"`
	IsChanged bool                `json:"isChanged"`
	CanSubmit bool                `json:"canSubmit"`
}

// Validate recomputes the form state for the page script after each change.
func (h *AdminSubscriptionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state := forms.Restore(h.schema, req.Values, req.Touched, req.IsChanged)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Form validated",
		Data: validateResponse{
			Errors:    state.Errors,
			Touched:   state.Touched,
			IsValid:   state.IsValid,
			IsChanged: state.IsChanged,
			CanSubmit: state.CanSubmit(),
		},
	})
}

// PaymentEvents lists the ledger, newest first.
func (h *AdminSubscriptionHandler) PaymentEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		utils.SendErrorResponse(w, http.StatusServiceUnavailable, "Payment event ledger is not available")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))

	events, err := h.events.ListPaymentEvents(r.Context(), userID, limit)
	if err != nil {
		log.Printf("Error listing payment events: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to list payment events")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Payment events retrieved",
		Data:    events,
	})
}
