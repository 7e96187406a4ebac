package constants

// Response messages shared by handlers and validators.
const (
	INVALID_INPUT         = "Invalid input"
	MISSING_SESSION_TOKEN = "Missing session token"
	MISSING_TOKEN         = "Missing token"
	INVALID_TOKEN         = "Invalid token"
	FORBIDDEN_RESTAURANT  = "Order belongs to another restaurant"
	INVALID_WEBHOOK_SIG   = "Invalid webhook signature"
	WEBHOOK_IGNORED       = "Webhook ignored"
	QR_GENERATION_FAILED  = "Failed to generate QR code"
	TOO_MANY_SESSIONS     = "Too many session requests, slow down"
)

// Fiber locals keys.
const (
	LOCAL_INPUT   = "input"
	LOCAL_STAFF   = "staff"
	LOCAL_SESSION = "session"
	LOCAL_LOGGER  = "logger"
	LOCAL_REQ_ID  = "requestId"
)

const (
	HEADER_SESSION_TOKEN = "X-Session-Token"
	HEADER_REQUEST_ID    = "X-Request-ID"
	HEADER_STRIPE_SIG    = "Stripe-Signature"
)
