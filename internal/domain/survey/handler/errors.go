package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/loader"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/pipeline"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/search"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/session"
	"github.com/FACorreiaa/feedback-insights/pkg/notify"
)

// Error codes returned in the error body.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeNoFiles         = "no_files"
	CodeTooLarge        = "payload_too_large"
	CodeNoTables        = "no_tables"
	CodeNoDelegateData  = "no_delegate_data"
	CodeNoRun           = "no_run"
	CodeUnknownTrainer  = "unknown_trainer"
	CodeNotFound        = "not_found"
	CodeEmailDisabled   = "email_disabled"
	CodeUpstreamFailure = "upstream_failure"
	CodeInternal        = "internal_error"
)

// ErrorBody is the "error" member of every failed response.
type ErrorBody struct {
	Code            string                    `json:"code"`
	Message         string                    `json:"message"`
	Fields          map[string]string         `json:"fields,omitempty"`
	Warnings        []dataset.Warning         `json:"warnings,omitempty"`
	Classifications []pipeline.Classification `json:"classifications,omitempty"`
}

// ErrResponse renders an error as {"error": {...}}.
type ErrResponse struct {
	Err    error     `json:"-"`
	Status int       `json:"-"`
	Body   ErrorBody `json:"error"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func newErr(status int, code, message string) *ErrResponse {
	return &ErrResponse{Status: status, Body: ErrorBody{Code: code, Message: message}}
}

// ErrInvalidRequest is a 400 with per-field messages.
func ErrInvalidRequest(message string, fields map[string]string) *ErrResponse {
	e := newErr(http.StatusBadRequest, CodeInvalidRequest, message)
	e.Body.Fields = fields
	return e
}

// errorFor maps domain errors to responses. Unknown errors become a 500
// whose message does not leak the cause.
func errorFor(err error) *ErrResponse {
	var (
		resp    *ErrResponse
		runErr  *pipeline.Error
		tooBig  *http.MaxBytesError
		message = err.Error()
	)
	switch {
	case errors.As(err, &tooBig):
		resp = newErr(http.StatusRequestEntityTooLarge, CodeTooLarge, "upload exceeds the size limit")
	case errors.Is(err, pipeline.ErrNoDelegateData):
		resp = newErr(http.StatusUnprocessableEntity, CodeNoDelegateData, message)
	case errors.Is(err, loader.ErrNoTables):
		resp = newErr(http.StatusBadRequest, CodeNoTables, message)
	case errors.Is(err, session.ErrNoRun):
		resp = newErr(http.StatusNotFound, CodeNoRun, "upload survey files first")
	case errors.Is(err, pipeline.ErrUnknownTrainer):
		resp = newErr(http.StatusNotFound, CodeUnknownTrainer, message)
	case errors.Is(err, search.ErrEmptyQuery):
		resp = ErrInvalidRequest(message, map[string]string{"q": "required"})
	case errors.Is(err, notify.ErrDisabled):
		resp = newErr(http.StatusServiceUnavailable, CodeEmailDisabled, message)
	case errors.Is(err, notify.ErrNoRecipients):
		resp = ErrInvalidRequest(message, map[string]string{"to": "required"})
	default:
		resp = newErr(http.StatusInternalServerError, CodeInternal, "internal error")
	}
	if errors.As(err, &runErr) {
		resp.Body.Warnings = runErr.Warnings
		resp.Body.Classifications = runErr.Classifications
	}
	resp.Err = err
	return resp
}
