// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/objtable"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
)

// Request operations.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpWhoIs = "who-is"
)

// OpIAm is the operation of the response to [OpWhoIs].
const OpIAm = "i-am"

// Error codes carried by error responses.
const (
	CodeMalformedRequest    = "malformed-request"
	CodeUnrecognizedService = "unrecognized-service"
	CodeUnknownObject       = "unknown-object"
	CodeWriteAccessDenied   = "write-access-denied"
	CodeValueOutOfRange     = "value-out-of-range"
	CodeInternalError       = "internal-error"
)

// maxDatagramSize is the maximum size of a datagram we read.
const maxDatagramSize = 1500

// Request is a datagram protocol request.
type Request struct {
	Op       string            `json:"op"`
	InvokeID uint32            `json:"invokeId"`
	Type     config.ObjectType `json:"type,omitempty"`
	Instance uint32            `json:"instance"`
	Value    any               `json:"value,omitempty"`

	// Priority is the optional write priority. The value is accepted
	// for compatibility and writes always replace the present value.
	Priority uint8 `json:"priority,omitempty"`

	// Low and High optionally restrict who-is to a device range.
	Low  *uint32 `json:"low,omitempty"`
	High *uint32 `json:"high,omitempty"`
}

// Key returns the object key of the request.
func (r *Request) Key() objtable.Key {
	return objtable.Key{Type: r.Type, Instance: r.Instance}
}

// Response is a datagram protocol response.
type Response struct {
	Op         string `json:"op,omitempty"`
	InvokeID   uint32 `json:"invokeId"`
	OK         bool   `json:"ok"`
	Value      any    `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	DeviceID   uint32 `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
}

// Err maps an error response to an error wrapping the
// corresponding [simerr] sentinel.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	switch r.Error {
	case CodeUnknownObject:
		return fmt.Errorf("%w: %s", simerr.ErrNotFound, r.Error)
	case CodeWriteAccessDenied:
		return fmt.Errorf("%w: %s", simerr.ErrWriteDenied, r.Error)
	case CodeValueOutOfRange:
		return fmt.Errorf("%w: %s", simerr.ErrInvalidValue, r.Error)
	default:
		return fmt.Errorf("%w: remote error: %s", simerr.ErrEngine, r.Error)
	}
}

// errorCode maps a [Handler] error to an error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, simerr.ErrNotFound):
		return CodeUnknownObject
	case errors.Is(err, simerr.ErrWriteDenied):
		return CodeWriteAccessDenied
	case errors.Is(err, simerr.ErrInvalidValue):
		return CodeValueOutOfRange
	default:
		return CodeInternalError
	}
}

// decode decodes a JSON datagram preserving numbers as [json.Number].
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
