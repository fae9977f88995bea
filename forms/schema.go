package forms

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Rule declares the checks applied to one form field.
type Rule struct {
	Field     string
	Label     string
	Required  bool
	MaxLength int
}

// Schema is an ordered list of field rules.
type Schema []Rule

// Fields returns the field names in declaration order.
func (s Schema) Fields() []string {
	fields := make([]string, 0, len(s))
	for _, rule := range s {
		fields = append(fields, rule.Field)
	}
	return fields
}

func (s Schema) rule(field string) (Rule, bool) {
	for _, rule := range s {
		if rule.Field == field {
			return rule, true
		}
	}
	return Rule{}, false
}

// Check returns the ordered messages for value, or nil when it passes.
func (r Rule) Check(value string) []string {
	var messages []string
	if r.Required && strings.TrimSpace(value) == "" {
		messages = append(messages, fmt.Sprintf("%s is required", r.Label))
	}
	if r.MaxLength > 0 && utf8.RuneCountInString(value) > r.MaxLength {
		messages = append(messages, fmt.Sprintf("%s is too long (maximum is %d characters)", r.Label, r.MaxLength))
	}
	return messages
}

// Validate checks every field of values and returns the failing ones.
func (s Schema) Validate(values map[string]string) map[string][]string {
	errors := map[string][]string{}
	for _, rule := range s {
		if messages := rule.Check(values[rule.Field]); len(messages) > 0 {
			errors[rule.Field] = messages
		}
	}
	return errors
}

const (
	FieldImage       = "image"
	FieldPrice       = "price"
	FieldTitle       = "title"
	FieldPlanID      = "planId"
	FieldValidity    = "validity"
	FieldDescription = "description"
)

// DefaultImageMaxLength bounds the encoded picture (about 2 MiB of image data).
const DefaultImageMaxLength = 2800000

// SubscriptionSchema is the schema of the admin "New Subscription" form.
func SubscriptionSchema(imageMaxLength int) Schema {
	if imageMaxLength <= 0 {
		imageMaxLength = DefaultImageMaxLength
	}
	return Schema{
		{Field: FieldImage, Label: "Image", Required: true, MaxLength: imageMaxLength},
		{Field: FieldPrice, Label: "Price", Required: true, MaxLength: 32},
		{Field: FieldTitle, Label: "Title", Required: true, MaxLength: 32},
		{Field: FieldPlanID, Label: "Plan id", Required: true, MaxLength: 256},
		{Field: FieldValidity, Label: "Validity", Required: true, MaxLength: 32},
		{Field: FieldDescription, Label: "Description", Required: true, MaxLength: 526},
	}
}
