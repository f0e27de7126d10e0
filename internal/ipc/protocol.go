// Package ipc carries rendered frames from the server process to a
// recorder over a local socket. Messages are gob bodies behind a
// fixed 8-byte header.
package ipc

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultSocketPath is where the publisher listens on Unix platforms.
const DefaultSocketPath = "/tmp/cryptopolis.sock"

// DefaultTCPAddr is the loopback fallback on platforms without Unix
// sockets.
const DefaultTCPAddr = "127.0.0.1:7459"

// Message types carried in the header.
const (
	MsgTypeFrame  byte = 0x01
	MsgTypePing   byte = 0x02
	MsgTypePong   byte = 0x03
	MsgTypeConfig byte = 0x04
)

// ProtocolVersion guards against a stale recorder reading a newer
// server's stream.
const ProtocolVersion uint16 = 1

const (
	// MaxMessageSize fits a 1080p RGBA frame plus gob overhead.
	MaxMessageSize = 16 * 1024 * 1024

	WriteTimeout   = 200 * time.Millisecond
	PingInterval   = 2 * time.Second
	ReconnectDelay = 500 * time.Millisecond
	MaxReconnects  = 20
)

// FrameMessage wraps one rendered frame for IPC transmission.
// Pixels holds Width*Height*4 bytes of RGBA data.
type FrameMessage struct {
	Sequence  uint64
	Timestamp int64 // Unix nano
	Width     int
	Height    int
	Pixels    []byte
}

// ConfigMessage tells a subscriber what frame geometry to expect
type ConfigMessage struct {
	Width  int
	Height int
	FPS    int
}

// Header frames every message: version, type, one reserved byte, and
// the body length, all little-endian.
type Header struct {
	Version  uint16
	Type     byte
	Reserved byte
	Length   uint32
}

// HeaderSize is the wire size of Header.
const HeaderSize = 8

func putHeader(dst []byte, h Header) {
	binary.LittleEndian.PutUint16(dst[0:2], h.Version)
	dst[2] = h.Type
	dst[3] = h.Reserved
	binary.LittleEndian.PutUint32(dst[4:8], h.Length)
}

func parseHeader(src []byte) Header {
	return Header{
		Version:  binary.LittleEndian.Uint16(src[0:2]),
		Type:     src[2],
		Reserved: src[3],
		Length:   binary.LittleEndian.Uint32(src[4:8]),
	}
}

// encPool recycles gob scratch buffers. Frame bodies run to megabytes,
// so allocating one per write would thrash the GC at 30 fps.
var encPool = sync.Pool{New: func() interface{} { return new(bytes.Buffer) }}

var decPool = sync.Pool{New: func() interface{} { return bytes.NewReader(nil) }}

// WriteMessage writes one framed message. A nil payload sends a bare
// header, which is how pings travel.
func WriteMessage(w io.Writer, msgType byte, payload interface{}) error {
	var body []byte
	if payload != nil {
		buf := encPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer encPool.Put(buf)

		if err := gob.NewEncoder(buf).Encode(payload); err != nil {
			return fmt.Errorf("gob encode: %w", err)
		}
		body = buf.Bytes()
	}

	if len(body) > MaxMessageSize {
		return fmt.Errorf("message body %d exceeds limit %d", len(body), MaxMessageSize)
	}

	var prefix [HeaderSize]byte
	putHeader(prefix[:], Header{
		Version: ProtocolVersion,
		Type:    msgType,
		Length:  uint32(len(body)),
	})

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}
	return nil
}

// ReadMessage reads one framed message and returns its type and raw
// body. The body is freshly allocated, so callers may keep it.
func ReadMessage(r io.Reader) (byte, []byte, error) {
	var prefix [HeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	h := parseHeader(prefix[:])
	if h.Version != ProtocolVersion {
		return 0, nil, fmt.Errorf("version mismatch: got %d, want %d", h.Version, ProtocolVersion)
	}
	if h.Length > MaxMessageSize {
		return 0, nil, fmt.Errorf("message body %d exceeds limit %d", h.Length, MaxMessageSize)
	}
	if h.Length == 0 {
		return h.Type, nil, nil
	}

	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return h.Type, body, nil
}

// DecodeFrame decodes a frame body.
func DecodeFrame(data []byte) (*FrameMessage, error) {
	var msg FrameMessage
	if err := decodeBody(data, &msg); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &msg, nil
}

// DecodeConfig decodes a config body.
func DecodeConfig(data []byte) (*ConfigMessage, error) {
	var msg ConfigMessage
	if err := decodeBody(data, &msg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &msg, nil
}

func decodeBody(data []byte, into interface{}) error {
	br := decPool.Get().(*bytes.Reader)
	br.Reset(data)
	err := gob.NewDecoder(br).Decode(into)
	// Drop the body reference so the pool does not pin frame-sized
	// slices between messages.
	br.Reset(nil)
	decPool.Put(br)
	return err
}

// CleanupSocket removes a leftover socket file. A missing file is not
// an error.
func CleanupSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	}
	return nil
}
