// Package forms validates server-driven form_card schemas and the answers
// submitted against them.
package forms

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"concierge-gateway/pkg/models"
)

// ValidateSchema checks the structural invariants of a form directive: field
// names unique within the form, selectable fields with at least one option.
func ValidateSchema(ui *models.ChatUI) error {
	if ui == nil || ui.Type != models.ChatUITypeFormCard {
		return errors.New("not a form_card directive")
	}
	if ui.ID == "" {
		return errors.New("form_card missing id")
	}

	seen := make(map[string]bool, len(ui.Fields))
	for _, field := range ui.Fields {
		if field.Name == "" {
			return errors.New("form_card field missing name")
		}
		if seen[field.Name] {
			return errors.Errorf("duplicate field name %q", field.Name)
		}
		seen[field.Name] = true

		if field.Type == "single_select" && len(field.Options) == 0 {
			return errors.Errorf("field %q has no options", field.Name)
		}
	}
	return nil
}

// MissingRequired returns the names of required fields without a selection, in
// schema order. Non-required empty fields never block submission.
func MissingRequired(ui *models.ChatUI, values models.TriageFormValues) []string {
	var missing []string
	for _, field := range ui.Fields {
		if field.Required && values[field.Name] == "" {
			missing = append(missing, field.Name)
		}
	}
	return missing
}

// OptionLabel resolves the selected value of a field to its display label,
// falling back to the raw value when the option is unknown.
func OptionLabel(ui *models.ChatUI, fieldName string, values models.TriageFormValues) string {
	selected := values[fieldName]
	for _, field := range ui.Fields {
		if field.Name != fieldName {
			continue
		}
		for _, opt := range field.Options {
			if opt.Value == selected {
				return opt.Label
			}
		}
	}
	return selected
}

// Summary builds the human-readable line sent as the conversation body when a
// triage form is submitted, e.g.
// "Triagem preenchida: Objetivo=Perder peso; Já usou GLP-1=Não."
func Summary(ui *models.ChatUI, values models.TriageFormValues) string {
	parts := make([]string, 0, len(ui.Fields))
	for _, field := range ui.Fields {
		parts = append(parts, fmt.Sprintf("%s=%s", field.Label, OptionLabel(ui, field.Name, values)))
	}
	return "Triagem preenchida: " + strings.Join(parts, "; ") + "."
}
