package common

// Cookie names used by the HTTP layer.
const (
	SessionCookieName    = "bf_session"
	PendingOTPCookieName = "bf_pending_otp"
)

// RequestIDHeaderName carries the per-request correlation id.
const RequestIDHeaderName = "X-Request-ID"
