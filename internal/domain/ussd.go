/**
 * @description
 * This file defines the USSD protocol types exchanged with the carrier gateway.
 * The gateway accumulates every input the subscriber has entered into a single
 * `*`-delimited transcript and replays it on each callback; the service answers
 * with a short prompt and a flag telling the gateway whether to keep the dialog
 * open.
 *
 * @notes
 * - `Text` is the full transcript, not just the latest entry. The latest entry
 *   is always the last `*`-delimited segment.
 * - `ContinueSession=false` ends the dialog; success and failure are
 *   indistinguishable at the protocol level beyond the message text.
 */

package domain

// USSDRequest is the callback payload sent by the carrier gateway for every
// step of a conversation.
type USSDRequest struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
	ServiceCode string `json:"serviceCode"`
	Text        string `json:"text"`
	NetworkCode string `json:"networkCode,omitempty"`
}

// USSDResponse is returned to the gateway after processing one step.
type USSDResponse struct {
	SessionID       string `json:"sessionId"`
	Message         string `json:"message"`
	ContinueSession bool   `json:"continueSession"`
}
