package forms

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megatrade-web/services/api"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeAdminAPI struct {
	calls []api.CreateSubscriptionsRequest
	err   error
}

func (f *fakeAdminAPI) CreateSubscriptions(_ context.Context, req api.CreateSubscriptionsRequest) (*api.Result, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &api.Result{Message: "Subscription created successfully"}, nil
}

func filledForm(t *testing.T) *State {
	t.Helper()
	s := New(SubscriptionSchema(0))
	require.NoError(t, s.OnUploadPicture(bytes.NewReader(pngHeader)))
	require.NoError(t, s.OnChange(FieldTitle, "Gold"))
	require.NoError(t, s.OnChange(FieldPrice, "29.99"))
	require.NoError(t, s.OnChange(FieldPlanID, "P-GOLD"))
	require.NoError(t, s.OnChange(FieldValidity, "30 days"))
	require.NoError(t, s.OnChange(FieldDescription, "Full market access"))
	return s
}

func TestNewFormIsEmptyAndNotSubmittable(t *testing.T) {
	s := New(SubscriptionSchema(0))

	assert.Len(t, s.Values, 6)
	for _, field := range SubscriptionSchema(0).Fields() {
		assert.Equal(t, "", s.Values[field])
		assert.False(t, s.HasError(field), "untouched field %s must not show errors", field)
	}
	assert.False(t, s.IsValid)
	assert.False(t, s.IsChanged)
	assert.False(t, s.CanSubmit())
}

func TestOnChangeMarksTouchedAndRevalidates(t *testing.T) {
	s := New(SubscriptionSchema(0))

	require.NoError(t, s.OnChange(FieldTitle, "Gold"))
	assert.True(t, s.Touched[FieldTitle])
	assert.True(t, s.IsChanged)
	assert.Empty(t, s.Errors[FieldTitle])

	require.NoError(t, s.OnChange(FieldTitle, ""))
	assert.Equal(t, []string{"Title is required"}, s.Errors[FieldTitle])
	assert.True(t, s.HasError(FieldTitle))
	assert.Equal(t, "Title is required", s.FirstError(FieldTitle))
}

func TestOnChangeRejectsUnknownField(t *testing.T) {
	s := New(SubscriptionSchema(0))
	err := s.OnChange("discount", "10")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.False(t, s.IsChanged)
}

func TestEveryEmptyRequiredFieldBlocksSubmission(t *testing.T) {
	for _, field := range SubscriptionSchema(0).Fields() {
		t.Run(field, func(t *testing.T) {
			s := filledForm(t)
			require.True(t, s.CanSubmit())

			require.NoError(t, s.OnChange(field, "   "))
			assert.NotEmpty(t, s.Errors[field])
			assert.Contains(t, s.Errors[field][0], "is required")
			assert.False(t, s.IsValid)
			assert.False(t, s.CanSubmit())
		})
	}
}

func TestEveryFieldOverMaxLengthFails(t *testing.T) {
	schema := SubscriptionSchema(128)
	for _, rule := range schema {
		t.Run(rule.Field, func(t *testing.T) {
			s := filledForm(t)
			s = Restore(schema, s.Values, s.Touched, true)
			require.True(t, s.CanSubmit())

			require.NoError(t, s.OnChange(rule.Field, strings.Repeat("x", rule.MaxLength+1)))
			require.Len(t, s.Errors[rule.Field], 1)
			assert.Contains(t, s.Errors[rule.Field][0], "is too long")
			assert.False(t, s.CanSubmit())

			require.NoError(t, s.OnChange(rule.Field, strings.Repeat("x", rule.MaxLength)))
			assert.Empty(t, s.Errors[rule.Field])
		})
	}
}

func TestMaxLengthCountsCharacters(t *testing.T) {
	rule := Rule{Field: "title", Label: "Title", Required: true, MaxLength: 3}
	assert.Empty(t, rule.Check("ééé"))
	assert.Equal(t, []string{"Title is too long (maximum is 3 characters)"}, rule.Check("éééé"))
}

func TestUploadPictureProducesDataURI(t *testing.T) {
	s := New(SubscriptionSchema(0))

	require.NoError(t, s.OnUploadPicture(bytes.NewReader(pngHeader)))

	uri := s.Values[FieldImage]
	re := regexp.MustCompile(`^data:image/png;base64,([A-Za-z0-9+/]+=*)$`)
	m := re.FindStringSubmatch(uri)
	require.NotNil(t, m, "unexpected data uri %q", uri)
	decoded, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)
	assert.Equal(t, pngHeader, decoded)
	assert.True(t, s.Touched[FieldImage])
	assert.True(t, s.IsChanged)
}

func TestUploadPictureReadFailureLeavesStateUntouched(t *testing.T) {
	s := filledForm(t)
	before := s.Values[FieldImage]

	err := s.OnUploadPicture(iotest.ErrReader(errors.New("disk error")))
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, before, s.Values[FieldImage])
	assert.True(t, s.CanSubmit())
}

func TestUploadPictureRejectsNonImages(t *testing.T) {
	s := New(SubscriptionSchema(0))
	err := s.OnUploadPicture(strings.NewReader("plain text, not a picture"))
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, "", s.Values[FieldImage])
	assert.False(t, s.IsChanged)
}

func TestValidityAndSubmitPredicateAgree(t *testing.T) {
	s := New(SubscriptionSchema(0))
	steps := []struct{ field, value string }{
		{FieldTitle, "Gold"},
		{FieldPrice, "10"},
		{FieldPlanID, "P-1"},
		{FieldValidity, "30"},
		{FieldDescription, "desc"},
		{FieldImage, "data:image/png;base64,AA=="},
		{FieldPrice, ""},
		{FieldPrice, "12"},
	}
	for _, step := range steps {
		require.NoError(t, s.OnChange(step.field, step.value))
		allFilled := true
		for _, v := range s.Values {
			if strings.TrimSpace(v) == "" {
				allFilled = false
			}
		}
		assert.Equal(t, allFilled, s.IsValid, "after %s=%q", step.field, step.value)
		assert.Equal(t, s.IsValid, s.CanSubmit(), "after %s=%q", step.field, step.value)
	}
}

func TestSubmitSendsValuesWhenSubmittable(t *testing.T) {
	s := filledForm(t)
	admin := &fakeAdminAPI{}

	res, err := s.Submit(context.Background(), admin, "admin-42")
	require.NoError(t, err)
	assert.Equal(t, "Subscription created successfully", res.Message)
	require.Len(t, admin.calls, 1)
	assert.Equal(t, "admin-42", admin.calls[0].AdminID)
	assert.Equal(t, "Gold", admin.calls[0].Title)
	assert.Equal(t, "P-GOLD", admin.calls[0].PlanID)
	assert.True(t, strings.HasPrefix(admin.calls[0].Image, "data:image/png;base64,"))
}

func TestSubmitRefusesInvalidForm(t *testing.T) {
	s := New(SubscriptionSchema(0))
	require.NoError(t, s.OnChange(FieldTitle, "Gold"))
	admin := &fakeAdminAPI{}

	_, err := s.Submit(context.Background(), admin, "admin-42")
	assert.ErrorIs(t, err, ErrNotSubmittable)
	assert.Empty(t, admin.calls)
}

func TestSubmitPropagatesPlatformError(t *testing.T) {
	s := filledForm(t)
	admin := &fakeAdminAPI{err: &api.Error{StatusCode: 409, Message: "Plan id already exists"}}

	_, err := s.Submit(context.Background(), admin, "admin-42")
	require.Error(t, err)
	assert.Equal(t, "Plan id already exists", api.UserMessage(err))
}

func TestRestoreRecomputesValidity(t *testing.T) {
	schema := SubscriptionSchema(0)
	s := Restore(schema, map[string]string{FieldTitle: "Gold", "bogus": "x"}, map[string]bool{FieldTitle: true}, true)

	assert.Equal(t, "Gold", s.Values[FieldTitle])
	_, ok := s.Values["bogus"]
	assert.False(t, ok)
	assert.False(t, s.IsValid)
	assert.False(t, s.HasError(FieldTitle))
	assert.False(t, s.HasError(FieldPrice))
	assert.NotEmpty(t, s.Errors[FieldPrice])
}
