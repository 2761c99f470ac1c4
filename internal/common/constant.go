package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// SessionCookieName is the cookie carrying the server-side session id.
const SessionCookieName = "session_id"

// TokenCookieName is the legacy cookie carrying a self-contained signed
// token. New logins no longer issue it, but it is still accepted.
const TokenCookieName = "session"
