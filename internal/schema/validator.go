package schema

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator checks reports against their structural constraints.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the custom format label rule registered.
func NewValidator() *Validator {
	v := validator.New()

	// Register custom validation for format labels
	v.RegisterValidation("format_label", func(fl validator.FieldLevel) bool {
		return IsFormatLabel(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Validate validates a report. Returns an error if validation fails.
func (v *Validator) Validate(report *Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if err := v.validate.Struct(report); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	for i, row := range report.Rows {
		if row.Len() != len(report.Columns) {
			return fmt.Errorf("row %d has %d fields, want %d", i, row.Len(), len(report.Columns))
		}
	}

	return nil
}

// IsFormatLabel reports whether s is one of the known format labels.
func IsFormatLabel(s string) bool {
	switch s {
	case LabelCSV, LabelJSON, LabelCleartext:
		return true
	}
	return false
}
