/**
 * @description
 * This file provides the gateway authentication middleware. The USSD
 * aggregator is the only legitimate caller of the callback endpoint, and it
 * identifies itself with a shared key in the X-Gateway-Key header. When no
 * key is configured the check is disabled, which keeps local development
 * friction-free.
 *
 * @dependencies
 * - crypto/subtle: Constant-time comparison of the shared key.
 * - net/http: Standard Go HTTP library.
 */

package api

import (
	"crypto/subtle"
	"log"
	"net/http"
)

const gatewayKeyHeader = "X-Gateway-Key"

// GatewayAuth rejects callbacks that do not carry the configured shared key.
func GatewayAuth(sharedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sharedKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			candidate := r.Header.Get(gatewayKeyHeader)
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(sharedKey)) != 1 {
				log.Printf("level=warn component=api msg=\"rejected callback with bad gateway key\" remote=%s", r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
