package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/viewtube/backend/internal/apierr"
)

var requestValidator = validator.New()

// decodeAndValidate parses a JSON body into dst and checks its
// validate tags. Failures come back as BadRequest API errors.
func decodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apierr.BadRequest("invalid request body")
	}

	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := requestValidator.Struct(dst)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return apierr.BadRequest("invalid request payload")
	}

	details := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			details = append(details, field+" is required")
		case "email":
			details = append(details, "invalid email format")
		case "min":
			details = append(details, field+" is too short")
		case "max":
			details = append(details, field+" is too long")
		default:
			details = append(details, "invalid "+field)
		}
	}
	return apierr.BadRequest("validation failed", details...)
}
