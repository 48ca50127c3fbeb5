/**
 * @description
 * This file contains the HTTP handlers for the USSD gateway callback
 * endpoint. Handlers parse the carrier's callback (JSON or form-encoded),
 * hand it to the conversation service, and write the response. The service
 * guarantees a well-formed response for every input, so the handler's only
 * error paths are malformed transport payloads.
 *
 * @dependencies
 * - encoding/json, net/http, strings: Standard Go libraries.
 * - internal/app, internal/domain: Conversation service and protocol types.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/oneubank/ussd-service/internal/app"
	"github.com/oneubank/ussd-service/internal/domain"
)

// USSDHandlers holds the conversation service the handlers delegate to.
type USSDHandlers struct {
	service *app.Service
}

// NewUSSDHandlers creates a new instance of USSDHandlers.
func NewUSSDHandlers(service *app.Service) *USSDHandlers {
	return &USSDHandlers{service: service}
}

// CallbackHandler handles one gateway callback on POST /ussd.
func (h *USSDHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	req, err := parseCallback(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed callback payload"})
		return
	}
	if req.SessionID == "" || req.PhoneNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionId and phoneNumber are required"})
		return
	}

	resp := h.service.HandleRequest(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// parseCallback accepts both payload encodings carriers use: JSON bodies and
// application/x-www-form-urlencoded posts.
func parseCallback(r *http.Request) (domain.USSDRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req domain.USSDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return domain.USSDRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return domain.USSDRequest{}, err
	}
	return domain.USSDRequest{
		SessionID:   r.PostFormValue("sessionId"),
		PhoneNumber: r.PostFormValue("phoneNumber"),
		ServiceCode: r.PostFormValue("serviceCode"),
		Text:        r.PostFormValue("text"),
		NetworkCode: r.PostFormValue("networkCode"),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}
