// types.go — wire request/response shapes shared by the daemon and its
// adapters. A Request is an opaque id plus a closed action enum; a Response
// mirrors the id back with either data, an error, or a confirmation prompt.
package wire

import "encoding/json"

// Request is the decoded shape of one incoming frame. Params is the whole
// raw object, id and action included, so each action handler can
// unmarshal only the fields it understands.
type Request struct {
	ID     string          `json:"id"`
	Action Action          `json:"action"`
	Params json.RawMessage `json:"-"`
}

// rawRequest decodes only id and action; UnmarshalJSON keeps the whole
// object as Params.
type rawRequest struct {
	ID     string `json:"id"`
	Action Action `json:"action"`
}

// UnmarshalJSON decodes id and action strictly, then keeps the full payload
// around (minus id/action is not worth the complexity — action handlers
// simply ignore the two fields they already have) so handlers can decode
// their own params.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Action = raw.Action
	r.Params = append(json.RawMessage(nil), data...)
	return nil
}

// DecodeParams unmarshals the request's raw params into v.
func (r *Request) DecodeParams(v any) error {
	if len(r.Params) == 0 {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

// Response is the outgoing frame. Exactly one of Data/Error is set on a
// terminal response; ConfirmationID etc. are set instead for a confirm
// prompt (success is false in that case too, per the wire contract).
type Response struct {
	ID                string `json:"id"`
	Success           bool   `json:"success"`
	Data              any    `json:"data,omitempty"`
	Error             string `json:"error,omitempty"`
	ConfirmationRequired bool   `json:"confirmationRequired,omitempty"`
	ConfirmationID    string `json:"confirmationId,omitempty"`
	Category          string `json:"category,omitempty"`
	Description       string `json:"description,omitempty"`
}

// OK builds a success response carrying data.
func OK(id string, data any) Response {
	return Response{ID: id, Success: true, Data: data}
}

// Fail builds a failure response carrying a human-readable error string.
func Fail(id string, errMsg string) Response {
	return Response{ID: id, Success: false, Error: errMsg}
}

// NeedsConfirmation builds the synthetic response surfaced when the policy
// gate defers an action pending confirmation.
func NeedsConfirmation(id, confirmationID, category, description string) Response {
	return Response{
		ID:                   id,
		Success:              false,
		ConfirmationRequired: true,
		ConfirmationID:       confirmationID,
		Category:             category,
		Description:          description,
	}
}
