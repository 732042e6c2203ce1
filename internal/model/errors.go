package model

import "errors"

// ErrMalformedResponse is returned when a page fetch response cannot be
// decoded into PageData or lacks a required field.
var ErrMalformedResponse = errors.New("malformed page response")
