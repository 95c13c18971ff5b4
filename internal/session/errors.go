package session

import (
	"encoding/json"
	"fmt"
)

const unknownError = "Unknown error"

// AuthError means login did not yield a usable token
type AuthError struct {
	Address string
	// Status is the HTTP status, zero when the request never completed
	Status int
	// Detail is the device-reported api_errors value
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("login to %s failed", e.Address)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError means the info request failed or its response lacked the
// required fields
type FetchError struct {
	Address string
	Status  int
	Detail  string
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch info from %s failed", e.Address)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// apiErrorDetail renders the api_errors member of a response
func apiErrorDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return unknownError
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
