// Package validator provides unified parameter validation and error conversion
package validator

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jobdeck/go-querycache/errcode"
)

// Validatable validatable interface
type Validatable interface {
	Validate() error
}

// ValidateStruct runs Validate and converts ozzo-validation errors to LayeredError
func ValidateStruct(v Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	if validationErrs, ok := err.(validation.Errors); ok {
		return ConvertValidationError(validationErrs)
	}

	return err
}

// ConvertValidationError converts ozzo-validation errors to a LayeredError
func ConvertValidationError(validationErrs validation.Errors) error {
	fields := make(map[string]string)
	for field, fieldErr := range validationErrs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}

	// Generic validation error; business-specific codes live in each module
	return errcode.New(
		1, 1010,
		"common",
		"error.common.validation_failed",
		"validation failed",
		400,
	).WithData("fields", fields)
}
