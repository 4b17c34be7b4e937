package handler

import (
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// Response is the JSON envelope of every API answer.
type Response struct {
	Status   string              `json:"status"`
	Message  string              `json:"message,omitempty"`
	Data     interface{}         `json:"data,omitempty"`
	Errors   []errors.FieldError `json:"errors,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}
