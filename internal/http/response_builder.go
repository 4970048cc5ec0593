// Package http serves the web dashboard.
//
// This file holds the builder used to answer HTMX requests: status, body
// and the HX-Trigger events the dashboard page listens for.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// HX-Trigger event names emitted by the dashboard handlers.
const (
	EventTransactionCreated = "transaction:created"
	EventTransactionDeleted = "transaction:deleted"
	EventFormReset          = "form:reset"
	EventDashboardRefresh   = "dashboard:refresh"
	EventShowNotification   = "show-notification"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerTransactionCreated tells the page a transaction with id was stored.
func (b *HTMXResponseBuilder) TriggerTransactionCreated(id string) *HTMXResponseBuilder {
	return b.Trigger(EventTransactionCreated, map[string]string{"id": id})
}

// TriggerTransactionDeleted tells the page a transaction with id was removed.
func (b *HTMXResponseBuilder) TriggerTransactionDeleted(id string) *HTMXResponseBuilder {
	return b.Trigger(EventTransactionDeleted, map[string]string{"id": id})
}

// TriggerFormReset clears the add-transaction form on the client.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger(EventFormReset, struct{}{})
}

// TriggerDashboardRefresh asks the page to reload charts for rangeName.
func (b *HTMXResponseBuilder) TriggerDashboardRefresh(rangeName string) *HTMXResponseBuilder {
	return b.Trigger(EventDashboardRefresh, map[string]string{"range": rangeName})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a toast notification shown for durationMs.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger(EventShowNotification, map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

// TriggerSuccessNotification is a convenience method for success notifications.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// TriggerErrorNotification is a convenience method for error notifications.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// TriggerWarningNotification is a convenience method for warning notifications.
func (b *HTMXResponseBuilder) TriggerWarningNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationWarning, message, 5000)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes.
func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyString sets the response body as a string.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets an HTML body. The caller is responsible for escaping.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse builds an HTML error fragment; message is escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// BadGatewayError creates a 502 Bad Gateway error response, used when the ledger API fails.
func BadGatewayError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadGateway, message)
}

// MethodNotAllowedError creates a 405 response with the Allow header set.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}
