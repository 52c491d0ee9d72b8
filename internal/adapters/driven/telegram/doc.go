// Package telegram implements the session client over an HTTP gateway to
// the Telegram network.
//
// The gateway holds the authenticated user session; this package only
// presents the session handle as a bearer token and pages backward through
// channel histories:
//
//	GET {endpoint}/channels/{channel}/messages?limit=N&offset_id=ID
//
// Responses use a Bot-API style envelope. Provider errors are mapped onto the
// domain sentinels: FLOOD_WAIT_X, 420 and 429 become a domain.RateLimitError;
// 401 and AUTH_KEY_* become domain.ErrUnauthorized; 404, CHANNEL_INVALID,
// CHANNEL_PRIVATE and USERNAME_* become domain.ErrNotFound; 5xx and network
// failures become domain.ErrTransient.
package telegram
