package httpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChunked(t *testing.T) {
	body, err := DecodeChunked([]byte("5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestDecodeChunkedErrors(t *testing.T) {
	cases := map[string]string{
		"missing terminator":    "5\r\nhello\r\n",
		"claimed size too big":  "ff\r\nhello\r\n0\r\n\r\n",
		"non-hex size":          "zz\r\nhello\r\n0\r\n\r\n",
		"missing size line CRLF": "5hello",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeChunked([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestDecodeChunkedWithExtensions(t *testing.T) {
	body, err := DecodeChunked([]byte("5;foo=bar\r\nhello\r\n0\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestParseResponseContentLength(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: 13\r\n\r\n{\"ok\":true}\r\n"
	resp, err := ParseResponse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "{\"ok\":true}\r\n", string(resp.Body))
	ct, ok := resp.Header("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", ct)
}

func TestParseResponseChunked(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	resp, err := ParseResponse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestParseResponseErrors(t *testing.T) {
	cases := map[string]string{
		"no header terminator":       "HTTP/1.1 200 OK\r\nContent-Length: 0",
		"invalid status line":        "NOTHTTP 200 OK\r\n\r\n",
		"header without colon":       "HTTP/1.1 200 OK\r\nbadheader\r\n\r\n",
		"no length determinable":     "HTTP/1.1 200 OK\r\n\r\nbody",
		"content-length non-integer": "HTTP/1.1 200 OK\r\nContent-Length: abc\r\n\r\nbody",
		"content-length mismatch":    "HTTP/1.1 200 OK\r\nContent-Length: 99\r\n\r\nbody",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestParseResponseMultiByteUTF8AcrossFrames(t *testing.T) {
	// Simulates reassembling a socket read where a multi-byte rune was
	// split across TCP frames: bytes are concatenated before decoding,
	// never decoded frame-by-frame.
	frame1 := []byte("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\n\xe2\x98")
	frame2 := []byte("\x83\x21") // remainder of "☃!" (snowman U+2603, then "!")
	combined := append(append([]byte{}, frame1...), frame2...)

	resp, err := ParseResponse(combined)
	require.NoError(t, err)
	assert.Equal(t, "☃!", string(resp.Body))
}
