// Package auth handles operator login for pharma-console.
//
// # Login
//
// Authenticator.Login applies the login form rules (email and password
// required, email must look like an address), then checks the password
// against the bcrypt hash configured for that operator:
//
//	auth:
//	  session_secret: "${PHARMA_SESSION_SECRET}"
//	  operators:
//	    - email: "ops@example.com"
//	      password_hash: "$2a$10$..."
//
// With auth.dev_mode enabled, unknown operators are accepted without a
// password check. Known operators are always verified.
//
// # Session Tokens
//
// A successful login yields an HS256 JWT with sub, iat and exp claims. The
// backend treats it as an opaque bearer credential; Inspect decodes it
// locally for display without verifying the signature.
package auth
