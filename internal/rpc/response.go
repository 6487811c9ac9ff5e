package rpc

import (
	"bytes"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

// Request is one inbound call as the transport sees it.
type Request struct {
	Operation string
	Token     string
	Payload   []byte
	RequestID string
}

// Response is the outcome of one call: a success value or a tagged error.
type Response struct {
	RequestID string
	OK        bool
	Data      contract.Value
	Error     *ErrorBody
}

// ErrorBody is the tagged error half of the envelope.
type ErrorBody struct {
	Name string
	Data contract.Value
}

// Outcome is "ok" or the error variant name; used for metrics and logs.
func (r *Response) Outcome() string {
	if r.OK {
		return "ok"
	}
	return r.Error.Name
}

// MarshalJSON encodes the wire envelope:
//
//	{"ok":true,"data":...}
//	{"ok":false,"error":{"name":"...","data":...}}
//
// Absent data encodes as null.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if r.OK {
		data, err := contract.MarshalValue(r.Data)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`{"ok":true,"data":`)
		buf.Write(data)
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}

	body := contract.Object{
		"name": contract.String(r.Error.Name),
		"data": r.Error.Data,
	}
	if r.Error.Data == nil {
		body["data"] = contract.Null{}
	}
	data, err := contract.MarshalValue(body)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"ok":false,"error":`)
	buf.Write(data)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func success(requestID string, data contract.Value) *Response {
	return &Response{RequestID: requestID, OK: true, Data: data}
}

func failure(requestID, name string, data contract.Value) *Response {
	return &Response{RequestID: requestID, Error: &ErrorBody{Name: name, Data: data}}
}

// internal is the single opaque fault response. It never carries detail.
func internal(requestID string) *Response {
	return failure(requestID, registry.VariantInternal, nil)
}

// Reject builds the failure response for a call refused before dispatch,
// such as a rate-limited or oversized request.
func Reject(requestID, name string, data contract.Value) *Response {
	return failure(requestID, name, data)
}
