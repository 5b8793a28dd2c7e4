// Package protocol defines the relay wire format: JSON requests and replies,
// and the sentinel-terminated chat frames.
package protocol

import (
	"fmt"

	"github.com/adcondev/relay-daemon/internal/relayerr"
)

// DefaultSentinel marks the end of a chat message. It is searched for as a
// substring of the accumulated bytes, not as a separate delimiter.
const DefaultSentinel = "CRLF"

// Reply descriptions
const (
	DescriptionWrongAuth            = "wrong auth"
	DescriptionRegistrationRequired = "registration required"
)

// AuthRequest is the first message on a connection that needs authentication.
type AuthRequest struct {
	Password *string `json:"password"`
}

// Validate reports a malformed request when a required field is absent.
func (r *AuthRequest) Validate() error {
	if r.Password == nil {
		return fmt.Errorf("%w: missing password", relayerr.ErrMalformedRequest)
	}
	return nil
}

// RegistrationRequest is the first message on a pending-registration address.
type RegistrationRequest struct {
	Password *string `json:"password"`
	Username *string `json:"username"`
}

// Validate reports a malformed request when a required field is absent.
func (r *RegistrationRequest) Validate() error {
	if r.Password == nil {
		return fmt.Errorf("%w: missing password", relayerr.ErrMalformedRequest)
	}
	if r.Username == nil {
		return fmt.Errorf("%w: missing username", relayerr.ErrMalformedRequest)
	}
	return nil
}

// ReplyBody carries the authenticated username.
type ReplyBody struct {
	Username string `json:"username"`
}

// Reply answers a registration or authentication request.
type Reply struct {
	Result      bool       `json:"result"`
	Body        *ReplyBody `json:"body,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ChatMessage is a relayed message. Text includes the trailing sentinel.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// RegistrationAccepted is the reply to a successful registration.
func RegistrationAccepted() Reply {
	return Reply{Result: true}
}

// AuthAccepted is the reply to a successful authentication.
func AuthAccepted(username string) Reply {
	return Reply{Result: true, Body: &ReplyBody{Username: username}}
}

// AuthWrong is the reply to a wrong password.
func AuthWrong() Reply {
	return Reply{Result: false, Description: DescriptionWrongAuth}
}

// AuthRegistrationRequired is the reply for an address with no accounts.
func AuthRegistrationRequired() Reply {
	return Reply{Result: false, Description: DescriptionRegistrationRequired}
}
