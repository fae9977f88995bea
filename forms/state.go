package forms

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"megatrade-web/services/api"
)

var (
	ErrUploadFailed   = errors.New("error while uploading your picture, please try again")
	ErrNotSubmittable = errors.New("form has missing or invalid fields")
	ErrUnknownField   = errors.New("unknown form field")
)

// UploadFailedMessage is the notification shown when a picture cannot be read.
const UploadFailedMessage = "Error while uploading your picture, please try again"

// State tracks the values, validation errors and interaction flags of one form.
type State struct {
	Values    map[string]string   `json:"values"`
	Errors    map[string][]string `json:"errors"`
	Touched   map[string]bool     `json:"touched"`
	IsValid   bool                `json:"isValid"`
	IsChanged bool                `json:"isChanged"`

	schema Schema
}

// New returns a form with an empty value for every schema field.
func New(schema Schema) *State {
	s := &State{
		Values:  make(map[string]string, len(schema)),
		Errors:  map[string][]string{},
		Touched: map[string]bool{},
		schema:  schema,
	}
	for _, field := range schema.Fields() {
		s.Values[field] = ""
	}
	s.validate()
	return s
}

// OnChange stores value under field, marks it touched and changed, and revalidates.
func (s *State) OnChange(field, value string) error {
	if _, ok := s.schema.rule(field); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	s.Values[field] = value
	s.Touched[field] = true
	s.IsChanged = true
	s.validate()
	return nil
}

// OnUploadPicture encodes the picture in r as a data URI under the image field.
// When the file cannot be read or is not an image the state is left untouched.
func (s *State) OnUploadPicture(r io.Reader) error {
	if r == nil {
		return ErrUploadFailed
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ErrUploadFailed
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return ErrUploadFailed
	}

	uri := "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(data)
	return s.OnChange(FieldImage, uri)
}

func (s *State) validate() {
	s.Errors = s.schema.Validate(s.Values)
	s.IsValid = len(s.Errors) == 0
}

// HasError reports whether field should display an error: it was touched and failed.
func (s *State) HasError(field string) bool {
	return s.Touched[field] && len(s.Errors[field]) > 0
}

// FirstError returns the helper text for field, empty when it should not show one.
func (s *State) FirstError(field string) string {
	if !s.HasError(field) {
		return ""
	}
	return s.Errors[field][0]
}

// CanSubmit is the only submission predicate: the form was edited and every
// field passes the schema.
func (s *State) CanSubmit() bool {
	return s.IsChanged && s.IsValid
}

// Value returns the current value of field.
func (s *State) Value(field string) string {
	return s.Values[field]
}

// Submit sends the subscription form to the platform on behalf of adminID.
func (s *State) Submit(ctx context.Context, admin api.AdminAPI, adminID string) (*api.Result, error) {
	if !s.CanSubmit() {
		return nil, ErrNotSubmittable
	}
	return admin.CreateSubscriptions(ctx, api.CreateSubscriptionsRequest{
		AdminID:     adminID,
		Image:       s.Values[FieldImage],
		Price:       s.Values[FieldPrice],
		Title:       s.Values[FieldTitle],
		PlanID:      s.Values[FieldPlanID],
		Validity:    s.Values[FieldValidity],
		Description: s.Values[FieldDescription],
	})
}

// Restore rebuilds a form from a snapshot sent back by the browser. Values for
// unknown fields are ignored and validity is always recomputed.
func Restore(schema Schema, values map[string]string, touched map[string]bool, changed bool) *State {
	s := New(schema)
	for _, field := range schema.Fields() {
		if v, ok := values[field]; ok {
			s.Values[field] = v
		}
		if touched[field] {
			s.Touched[field] = true
		}
	}
	s.IsChanged = changed
	s.validate()
	return s
}
