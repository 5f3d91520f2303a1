package order

import (
	"errors"
	"strings"
	"testing"

	"github.com/pitabwire/netgate/model"
)

func assertValidationError(t *testing.T, err error, wantMessage string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var envelope *model.ErrorEnvelope
	if !errors.As(err, &envelope) {
		t.Fatalf("expected an error envelope, got %T", err)
	}
	if envelope.Code != model.ErrValidationError {
		t.Fatalf("code = %s, want %s", envelope.Code, model.ErrValidationError)
	}
	if envelope.Message != wantMessage {
		t.Fatalf("message = %q, want %q", envelope.Message, wantMessage)
	}
}

func TestValidator_emptyName(t *testing.T) {
	v := NewValidator()
	assertValidationError(t, v.ValidateName(""), "Site name cannot be empty")
}

func TestValidator_whitespaceOnlyName(t *testing.T) {
	v := NewValidator()
	assertValidationError(t, v.ValidateName("   "), "Site name cannot be empty")
}

func TestValidator_nameTooLong(t *testing.T) {
	v := NewValidator()
	err := v.ValidateName(strings.Repeat("a", 101))
	assertValidationError(t, err, "Site name exceeds maximum length of 100 characters")
}

func TestValidator_nameAtLimit(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateName(strings.Repeat("a", 100)); err != nil {
		t.Fatalf("100-character name should pass: %v", err)
	}
}

func TestValidator_trimmedLengthCounts(t *testing.T) {
	v := NewValidator()
	// 100 characters plus surrounding whitespace still passes.
	name := "  " + strings.Repeat("a", 100) + "  "
	if err := v.ValidateName(name); err != nil {
		t.Fatalf("padded name should pass: %v", err)
	}
}

func TestValidator_invalidCharacters(t *testing.T) {
	v := NewValidator()
	for _, name := range []string{"Site@Name", "Site#1", "Site/Name", "Café"} {
		assertValidationError(t, v.ValidateName(name), "Site name contains invalid characters")
	}
}

func TestValidator_validNames(t *testing.T) {
	v := NewValidator()
	for _, name := range []string{"Site-1", "Site_1", "Site.1", "Site (Main)", "Site-Name_123"} {
		if err := v.ValidateName(name); err != nil {
			t.Fatalf("name %q should pass: %v", name, err)
		}
	}
}

func TestValidator_descriptionTooLong(t *testing.T) {
	v := NewValidator()
	err := v.ValidateDescription(strings.Repeat("a", 501))
	assertValidationError(t, err, "Description exceeds maximum length of 500 characters")
}

func TestValidator_addressTooLong(t *testing.T) {
	v := NewValidator()
	err := v.ValidateAddress(strings.Repeat("a", 201))
	assertValidationError(t, err, "Address exceeds maximum length of 200 characters")
}

func TestValidator_siteOrderValid(t *testing.T) {
	v := NewValidator()
	order := model.CreateSiteOrder{
		Name:        "Valid Site",
		Description: "Valid description",
		Address:     "123 Main St",
	}
	if err := v.ValidateSiteOrder(order); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}
}

func TestValidator_siteOrderOptionalFieldsAbsent(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateSiteOrder(model.CreateSiteOrder{Name: "Minimal Site"}); err != nil {
		t.Fatalf("minimal order rejected: %v", err)
	}
}

func TestValidator_siteOrderInvalidName(t *testing.T) {
	v := NewValidator()
	err := v.ValidateSiteOrder(model.CreateSiteOrder{Name: ""})
	assertValidationError(t, err, "Site name cannot be empty")
}

func TestValidator_customRules(t *testing.T) {
	v := NewValidatorWithRules(10, 20, 20)
	assertValidationError(t, v.ValidateName("this name is too long"), "Site name exceeds maximum length of 10 characters")
}
