package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxMessageLength is the longest user message accepted by the chat endpoint, in characters.
const MaxMessageLength = 2000

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	// Report json field names so 422 details match what the client sent.
	requestValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// --- Request Structs ---

// ChatRequest defines the expected body for the streaming chat endpoint.
type ChatRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,min=1"`
	Message        string `json:"message" validate:"required,min=1,max=2000"`
}

// Validate checks the request against its validation tags.
func (r *ChatRequest) Validate() error {
	return requestValidate.Struct(r)
}

// DescribeValidationError flattens validator errors into a single client-facing sentence.
func DescribeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}

// --- Response Structs ---

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DetailResponse is returned by endpoints that only acknowledge an action.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// HealthResponse reports whether the generation engine is ready.
type HealthResponse struct {
	Status      string `json:"status"` // "ok" or "loading"
	ModelID     string `json:"model_id"`
	ModelLoaded bool   `json:"model_loaded"`
}
