package protocol

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adcondev/relay-daemon/internal/relayerr"
)

func TestEncodeReplies(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"registration accepted", RegistrationAccepted(), `{"result":true}`},
		{"auth accepted", AuthAccepted("alice"), `{"result":true,"body":{"username":"alice"}}`},
		{"wrong auth", AuthWrong(), `{"result":false,"description":"wrong auth"}`},
		{"registration required", AuthRegistrationRequired(), `{"result":false,"description":"registration required"}`},
		{"chat", ChatMessage{Username: "alice", Text: "hello" + DefaultSentinel}, `{"username":"alice","text":"helloCRLF"}`},
		{"chat keeps html and unicode", ChatMessage{Username: "bob", Text: "<b>привет</b> & CRLF"}, `{"username":"bob","text":"<b>привет</b> & CRLF"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestFramerPush(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		wantFrames  []string
		wantPending int
	}{
		{
			name:       "single frame in one read",
			chunks:     []string{"helloCRLF"},
			wantFrames: []string{"helloCRLF"},
		},
		{
			name:       "frame split across reads",
			chunks:     []string{"hel", "lo CR", "LF"},
			wantFrames: []string{"hello CRLF"},
		},
		{
			name:        "bytes after sentinel are kept",
			chunks:      []string{"oneCRLFtw", "oCRLF"},
			wantFrames:  []string{"oneCRLF", "twoCRLF"},
			wantPending: 0,
		},
		{
			name:       "several frames in one read",
			chunks:     []string{"aCRLFbCRLFcCRLF"},
			wantFrames: []string{"aCRLF", "bCRLF", "cCRLF"},
		},
		{
			name:        "no sentinel yet",
			chunks:      []string{"partial"},
			wantFrames:  nil,
			wantPending: 7,
		},
		{
			name:       "bare sentinel",
			chunks:     []string{"CRLF"},
			wantFrames: []string{"CRLF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(DefaultSentinel, 0)
			var got []string
			for _, chunk := range tt.chunks {
				frames, err := f.Push([]byte(chunk))
				require.NoError(t, err)
				for _, frame := range frames {
					got = append(got, string(frame))
				}
			}
			assert.Equal(t, tt.wantFrames, got)
			assert.Equal(t, tt.wantPending, f.Pending())
		})
	}
}

func TestFramerMaxSize(t *testing.T) {
	f := NewFramer(DefaultSentinel, 8)

	frames, err := f.Push([]byte("okCRLF0123456789"))
	assert.ErrorIs(t, err, relayerr.ErrFrameTooLarge)
	require.Len(t, frames, 1)
	assert.Equal(t, "okCRLF", string(frames[0]))
}

func TestFramerCustomSentinel(t *testing.T) {
	f := NewFramer("\n", 0)

	frames, err := f.Push([]byte("a\nb"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "a\n", string(frames[0]))
	assert.Equal(t, 1, f.Pending())
}

func TestReadRequest(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		var req AuthRequest
		rest, terminated, err := ReadRequest(strings.NewReader(`{"password":"p"}`), 1024, DefaultSentinel, &req)
		require.NoError(t, err)
		assert.Equal(t, "p", *req.Password)
		assert.False(t, terminated)

		tail, _ := io.ReadAll(rest)
		assert.Empty(t, tail)
	})

	t.Run("sentinel terminated and followed by chat", func(t *testing.T) {
		var req AuthRequest
		rest, terminated, err := ReadRequest(strings.NewReader(`{"password":"p"}CRLFhiCRLF`), 1024, DefaultSentinel, &req)
		require.NoError(t, err)
		assert.True(t, terminated)

		tail, _ := io.ReadAll(rest)
		assert.Equal(t, "hiCRLF", string(tail))
	})

	t.Run("partial sentinel stays in the stream", func(t *testing.T) {
		var req AuthRequest
		rest, terminated, err := ReadRequest(strings.NewReader(`{"password":"p"}CR`), 1024, DefaultSentinel, &req)
		require.NoError(t, err)
		assert.False(t, terminated)

		tail, _ := io.ReadAll(rest)
		assert.Equal(t, "CR", string(tail))
	})

	t.Run("registration", func(t *testing.T) {
		var req RegistrationRequest
		_, _, err := ReadRequest(strings.NewReader(`{"password":"p","username":"alice"}`), 1024, DefaultSentinel, &req)
		require.NoError(t, err)
		assert.Equal(t, "alice", *req.Username)
	})

	t.Run("missing field", func(t *testing.T) {
		var req RegistrationRequest
		_, _, err := ReadRequest(strings.NewReader(`{"password":"p"}`), 1024, DefaultSentinel, &req)
		assert.ErrorIs(t, err, relayerr.ErrMalformedRequest)
	})

	t.Run("not json", func(t *testing.T) {
		var req AuthRequest
		_, _, err := ReadRequest(strings.NewReader(`helloCRLF`), 1024, DefaultSentinel, &req)
		assert.ErrorIs(t, err, relayerr.ErrMalformedRequest)
	})

	t.Run("wrong type", func(t *testing.T) {
		var req AuthRequest
		_, _, err := ReadRequest(strings.NewReader(`{"password":42}`), 1024, DefaultSentinel, &req)
		assert.ErrorIs(t, err, relayerr.ErrMalformedRequest)
	})

	t.Run("over limit", func(t *testing.T) {
		var req AuthRequest
		_, _, err := ReadRequest(strings.NewReader(`{"password":"`+strings.Repeat("x", 64)+`"}`), 16, DefaultSentinel, &req)
		assert.ErrorIs(t, err, relayerr.ErrMalformedRequest)
	})

	t.Run("peer closed", func(t *testing.T) {
		var req AuthRequest
		_, _, err := ReadRequest(strings.NewReader(""), 1024, DefaultSentinel, &req)
		assert.True(t, errors.Is(err, relayerr.ErrPeerClosed))
	})
}
