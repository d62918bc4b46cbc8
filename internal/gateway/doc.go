// Package gateway is the console's single outbound channel to the pharmacy
// backend.
//
// # Headers
//
// Every call carries Content-Type, Accept and a fresh X-Request-ID. When a
// session credential is stored it is sent as a bearer token. Paths containing
// /admin additionally carry the X-ADMIN-KEY capability header, whether or not
// a credential is present.
//
// # Session Expiry
//
// A 401 from any call clears the stored credential and notifies the single
// expiry handler, then returns the *APIError so the caller can still react.
// Teardown is serialised: concurrent 401s for one credential produce one
// notification, and a credential replaced by a newer login is never wiped by
// a late 401 for the old one.
//
//	client := gateway.New(baseURL, store,
//	    gateway.WithExpiryHandler(func(ev gateway.ExpiredEvent) {
//	        // route the operator back to login
//	    }),
//	)
//
// # Errors
//
// Non-2xx responses are *APIError, with Detail taken from the body when the
// backend supplies one. Network failures and timeouts are *TransportError.
// ErrorText turns either into the single line shown to the operator.
package gateway
