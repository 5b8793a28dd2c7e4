// Package relayerr classifies the failures a relay session can run into and
// turns low-level errors into short descriptions for the log.
package relayerr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// Kind is the coarse category of a session failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedRequest
	KindAuthRejected
	KindRegistrationRequired
	KindDeliveryFailure
	KindStoreUnavailable
	KindPeerClosed
	KindTimeout
	KindFrameTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRequest:
		return "malformed_request"
	case KindAuthRejected:
		return "auth_rejected"
	case KindRegistrationRequired:
		return "registration_required"
	case KindDeliveryFailure:
		return "delivery_failure"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindPeerClosed:
		return "peer_closed"
	case KindTimeout:
		return "timeout"
	case KindFrameTooLarge:
		return "frame_too_large"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind.
var (
	ErrMalformedRequest     = errors.New("malformed request")
	ErrAuthRejected         = errors.New("wrong auth")
	ErrRegistrationRequired = errors.New("registration required")
	ErrDeliveryFailure      = errors.New("delivery failure")
	ErrStoreUnavailable     = errors.New("credential store unavailable")
	ErrPeerClosed           = errors.New("peer closed connection")
	ErrFrameTooLarge        = errors.New("frame exceeds maximum size")
)

// StoreError wraps a backend failure so callers can match ErrStoreUnavailable
// while keeping the underlying cause.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrMalformedRequest):
		return KindMalformedRequest
	case errors.Is(err, ErrAuthRejected):
		return KindAuthRejected
	case errors.Is(err, ErrRegistrationRequired):
		return KindRegistrationRequired
	case errors.Is(err, ErrDeliveryFailure):
		return KindDeliveryFailure
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrFrameTooLarge):
		return KindFrameTooLarge
	case errors.Is(err, ErrPeerClosed), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return KindPeerClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnknown
}

// Describe creates a clean, single-line message for the log.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	// Common error patterns and their short messages
	errorMappings := []struct {
		pattern string
		message string
	}{
		{"broken pipe", "PEER: Broken pipe"},
		{"connection reset by peer", "PEER: Connection reset"},
		{"use of closed network connection", "PEER: Connection already closed"},
		{"i/o timeout", "TIMEOUT: Peer did not respond in time"},
		{"send buffer full", "DELIVERY: Outbound queue full"},
		{"connection refused", "STORE: Backend refused connection"},
		{"yaml:", "STORE: Credential file is not valid YAML"},
		{"permission denied", "STORE: Permission denied"},
		{"no such file or directory", "STORE: Path does not exist"},
	}

	for _, mapping := range errorMappings {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(mapping.pattern)) {
			return mapping.message
		}
	}

	switch KindOf(err) {
	case KindMalformedRequest:
		return fmt.Sprintf("REQUEST: %s", extractInnerError(errStr))
	case KindStoreUnavailable:
		return fmt.Sprintf("STORE: %s", extractInnerError(errStr))
	case KindPeerClosed:
		return "PEER: Closed"
	case KindTimeout:
		return "TIMEOUT: Peer did not respond in time"
	case KindFrameTooLarge:
		return "FRAME: Message exceeds maximum size"
	}

	return fmt.Sprintf("ERROR: %s", errStr)
}

// extractInnerError gets the innermost error message
func extractInnerError(errStr string) string {
	parts := strings.Split(errStr, ": ")
	return parts[len(parts)-1]
}
