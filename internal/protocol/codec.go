package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/adcondev/relay-daemon/internal/relayerr"
)

// Request is a decoded control request that can check its own fields.
type Request interface {
	Validate() error
}

// Encode marshals v without HTML escaping and without a trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ReadRequest decodes exactly one JSON object from r into req, reading at most
// limit bytes. A sentinel directly following the object is consumed and
// reported through terminated. The returned reader yields every byte read
// past the request followed by the rest of r, so nothing the peer sent after
// the request is lost.
func ReadRequest(r io.Reader, limit int64, sentinel string, req Request) (rest io.Reader, terminated bool, err error) {
	dec := json.NewDecoder(io.LimitReader(r, limit))
	if err := dec.Decode(req); err != nil {
		return r, false, classifyDecodeError(err)
	}

	leftover, _ := io.ReadAll(dec.Buffered())
	leftover = bytes.TrimLeft(leftover, " \t\r\n")
	if bytes.HasPrefix(leftover, []byte(sentinel)) {
		leftover = leftover[len(sentinel):]
		terminated = true
	}

	rest = r
	if len(leftover) > 0 {
		rest = io.MultiReader(bytes.NewReader(leftover), r)
	}

	if err := req.Validate(); err != nil {
		return rest, terminated, err
	}
	return rest, terminated, nil
}

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF):
		return relayerr.ErrPeerClosed
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %v", relayerr.ErrMalformedRequest, err)
	default:
		return err
	}
}
