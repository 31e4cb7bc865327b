package http

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"ticketbooth/internal/apperr"
)

var requestValidator = validator.New()

func decodeAndValidate(body io.Reader, dst interface{}) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return apperr.Validation("invalid_request", "Invalid JSON body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := strings.ToLower(first.Field())
			switch first.Tag() {
			case "required":
				return apperr.Validation("missing_"+field, field+" is required")
			case "email":
				return apperr.Validation("invalid_email", "Invalid email format")
			case "min":
				return apperr.Validation("invalid_"+field, field+" is below the minimum allowed value")
			case "max":
				return apperr.Validation("invalid_"+field, field+" exceeds the maximum allowed value")
			case "oneof":
				return apperr.Validation("invalid_"+field, "Invalid value for "+field)
			default:
				return apperr.Validation("invalid_"+field, "Invalid "+field)
			}
		}
		return apperr.Validation("invalid_request", "Invalid request payload")
	}

	return nil
}
