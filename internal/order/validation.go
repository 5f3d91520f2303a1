// Package order implements the order processing pipeline: validation,
// transformation into inventory payloads, enrichment, and the processor
// registry that routes order types through it.
package order

import (
	"fmt"
	"strings"

	"github.com/pitabwire/netgate/model"
)

// Validation limits for inbound site orders.
const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxAddressLength     = 200
)

// Validator applies the business rules an order must pass before any
// workflow state is created for it.
type Validator struct {
	maxNameLength        int
	maxDescriptionLength int
	maxAddressLength     int
}

// NewValidator returns a Validator with the standard limits.
func NewValidator() *Validator {
	return &Validator{
		maxNameLength:        maxNameLength,
		maxDescriptionLength: maxDescriptionLength,
		maxAddressLength:     maxAddressLength,
	}
}

// NewValidatorWithRules returns a Validator with custom length limits.
func NewValidatorWithRules(name, description, address int) *Validator {
	return &Validator{
		maxNameLength:        name,
		maxDescriptionLength: description,
		maxAddressLength:     address,
	}
}

// ValidateSiteOrder checks an inbound site order. The name is required;
// description and address are validated only when present. Failures are
// VALIDATION_ERROR envelopes carrying the rule that was broken.
func (v *Validator) ValidateSiteOrder(o model.CreateSiteOrder) error {
	if err := v.ValidateName(o.Name); err != nil {
		return err
	}
	if o.Description != "" {
		if err := v.ValidateDescription(o.Description); err != nil {
			return err
		}
	}
	if o.Address != "" {
		if err := v.ValidateAddress(o.Address); err != nil {
			return err
		}
	}
	return nil
}

// ValidateName checks the site name. Validation runs on the trimmed name;
// surrounding whitespace is not counted against the limit.
func (v *Validator) ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return model.NewValidationError("Site name cannot be empty")
	}
	if len(trimmed) > v.maxNameLength {
		return model.NewValidationError(fmt.Sprintf("Site name exceeds maximum length of %d characters", v.maxNameLength))
	}
	for _, r := range trimmed {
		if !allowedNameRune(r) {
			return model.NewValidationError("Site name contains invalid characters")
		}
	}
	return nil
}

// ValidateDescription checks an optional description.
func (v *Validator) ValidateDescription(description string) error {
	if len(description) > v.maxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("Description exceeds maximum length of %d characters", v.maxDescriptionLength))
	}
	return nil
}

// ValidateAddress checks an optional address.
func (v *Validator) ValidateAddress(address string) error {
	if len(address) > v.maxAddressLength {
		return model.NewValidationError(fmt.Sprintf("Address exceeds maximum length of %d characters", v.maxAddressLength))
	}
	return nil
}

// allowedNameRune reports whether r may appear in a site name: ASCII
// letters, digits, spaces, hyphens, underscores, dots and parentheses.
func allowedNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '-', r == '_', r == '.', r == '(', r == ')':
		return true
	}
	return false
}
