package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"studyhub-backend/internal/models"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// validateStruct runs the tag validators on a request struct and flattens the
// failures into a field->message map for the error envelope.
func validateStruct(req interface{}) map[string]string {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["_"] = "Invalid request"
		return fields
	}
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[name] = "This field is required"
		case "email":
			fields[name] = "Must be a valid email address"
		case "url":
			fields[name] = "Must be a valid URL"
		case "max":
			fields[name] = "Too long (max " + fe.Param() + ")"
		case "min":
			fields[name] = "Too short (min " + fe.Param() + ")"
		case "oneof":
			fields[name] = "Must be one of: " + fe.Param()
		case "gte":
			fields[name] = "Must be at least " + fe.Param()
		case "lte":
			fields[name] = "Must be at most " + fe.Param()
		default:
			fields[name] = "Invalid value"
		}
	}
	return fields
}
