// Package broker turns a one-way, fire-and-forget message channel into
// request/response RPC. The Requester half lives in the UI process and the
// Responder half lives next to the providers in the host process; the two
// only share a Transport.
package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

// Side tags which half of the broker posted a message.
type Side string

const (
	SideRequester Side = "requester"
	SideResponder Side = "responder"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

const (
	TypeSearch  MessageType = "search"
	TypeExecute MessageType = "execute"
	TypeCatalog MessageType = "catalog"
)

// Error codes carried in a failed Result so the requester can map the
// failure back onto a sentinel error.
const (
	CodeProviderNotFound   = "E_PROVIDER_NOT_FOUND"
	CodeProviderExecution  = "E_PROVIDER_EXECUTION"
	CodeCatalogUnavailable = "E_CATALOG_UNAVAILABLE"
)

// SearchPayload asks a provider command to search.
type SearchPayload struct {
	ProviderID string `json:"providerId"`
	CommandID  string `json:"commandId"`
	Query      string `json:"query"`
}

// ExecutePayload asks a provider command to run an action on a result.
type ExecutePayload struct {
	ProviderID string         `json:"providerId"`
	CommandID  string         `json:"commandId"`
	ActionID   string         `json:"actionId"`
	ResultID   string         `json:"resultId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Message is a request posted by the requester side.
type Message struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    Side            `json:"source"`
	Type      MessageType     `json:"type"`
	Search    *SearchPayload  `json:"search,omitempty"`
	Execute   *ExecutePayload `json:"execute,omitempty"`
}

// ProviderID returns the provider the message is addressed to, or "" for
// catalog requests.
func (m *Message) ProviderID() string {
	switch {
	case m.Search != nil:
		return m.Search.ProviderID
	case m.Execute != nil:
		return m.Execute.ProviderID
	default:
		return ""
	}
}

// Result is the {success, data, error} envelope of a response.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Response answers the Message with the same ID.
type Response struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    Side      `json:"source"`
	Result    Result    `json:"result"`
}

// Err converts a failed result into an error wrapping the matching sentinel.
// It returns nil for successful responses.
func (r *Response) Err() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrTransportFailure)
	}
	if r.Result.Success {
		return nil
	}
	msg := r.Result.Error
	if msg == "" {
		msg = "request failed"
	}
	switch r.Result.Code {
	case CodeProviderNotFound:
		return fmt.Errorf("%w: %s", ErrProviderNotFound, msg)
	default:
		return fmt.Errorf("%w: %s", ErrProviderExecution, msg)
	}
}

// Decode unmarshals the response data into v. A failed response returns
// its Err instead.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result.Data, v); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Envelope is the unit a Transport carries. Exactly one field is set.
type Envelope struct {
	Message  *Message  `json:"message,omitempty"`
	Response *Response `json:"response,omitempty"`
}

// ID returns the correlation id of whichever half is set.
func (e Envelope) ID() string {
	switch {
	case e.Message != nil:
		return e.Message.ID
	case e.Response != nil:
		return e.Response.ID
	default:
		return ""
	}
}
