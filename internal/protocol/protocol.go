// Package protocol implements the binary framing spoken over the
// websocket channel. One websocket message carries exactly one packet:
// a one-byte tag followed by a type-dependent payload. Multi-byte
// integers are big-endian.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet tags.
//
// Wire format per tag:
//
//	FrameRequest  (0x01): vw(u16) + vh(u16) + quality(u8)       = 6 bytes
//	FrameResponse (0x02): ftype(u8) + rw(u16) + rh(u16)
//	                      + [cx(u16) + cy(u16)] + [jpeg]
//	Input         (0x03): JSON array of positional event records
//
// The login exchange reuses tag 0x01: the first client message is
// len(u16) + password, the server answer is a single status byte.
const (
	TagFrameRequest  byte = 0x01
	TagFrameResponse byte = 0x02
	TagInput         byte = 0x03
)

// Frame types carried in a frame response.
const (
	FrameEmpty   byte = 0x00
	FrameFull    byte = 0x01
	FramePartial byte = 0x02
)

// Login status bytes.
const (
	AuthController byte = 0x00
	AuthViewer     byte = 0x01
	AuthRejected   byte = 0xFF
)

// ErrMalformedPacket is wrapped by every decode failure.
var ErrMalformedPacket = errors.New("malformed packet")

// FrameRequest asks for one frame rendered to the given viewport.
type FrameRequest struct {
	ViewportWidth  uint16
	ViewportHeight uint16
	Quality        uint8
}

// FrameResponse carries one emitted frame. CropX/CropY are meaningful
// only for partial frames; JPEG is empty for empty frames.
type FrameResponse struct {
	Type         byte
	RemoteWidth  uint16
	RemoteHeight uint16
	CropX        uint16
	CropY        uint16
	JPEG         []byte
}

// EncodeFrameRequest serializes a frame request to wire format.
func EncodeFrameRequest(req FrameRequest) []byte {
	buf := make([]byte, 6)
	buf[0] = TagFrameRequest
	binary.BigEndian.PutUint16(buf[1:3], req.ViewportWidth)
	binary.BigEndian.PutUint16(buf[3:5], req.ViewportHeight)
	buf[5] = req.Quality
	return buf
}

// DecodeFrameRequest deserializes a frame request message.
func DecodeFrameRequest(msg []byte) (FrameRequest, error) {
	if len(msg) != 6 || msg[0] != TagFrameRequest {
		return FrameRequest{}, fmt.Errorf("%w: frame request must be 6 bytes", ErrMalformedPacket)
	}
	req := FrameRequest{
		ViewportWidth:  binary.BigEndian.Uint16(msg[1:3]),
		ViewportHeight: binary.BigEndian.Uint16(msg[3:5]),
		Quality:        msg[5],
	}
	if req.Quality == 0 {
		return FrameRequest{}, fmt.Errorf("%w: frame request quality must not be 0", ErrMalformedPacket)
	}
	return req, nil
}

// EncodeFrameResponse serializes a frame response. An empty frame
// yields exactly 6 bytes.
func EncodeFrameResponse(resp *FrameResponse) []byte {
	size := 6
	switch resp.Type {
	case FrameFull:
		size += len(resp.JPEG)
	case FramePartial:
		size += 4 + len(resp.JPEG)
	}
	buf := make([]byte, size)
	buf[0] = TagFrameResponse
	buf[1] = resp.Type
	binary.BigEndian.PutUint16(buf[2:4], resp.RemoteWidth)
	binary.BigEndian.PutUint16(buf[4:6], resp.RemoteHeight)
	switch resp.Type {
	case FrameFull:
		copy(buf[6:], resp.JPEG)
	case FramePartial:
		binary.BigEndian.PutUint16(buf[6:8], resp.CropX)
		binary.BigEndian.PutUint16(buf[8:10], resp.CropY)
		copy(buf[10:], resp.JPEG)
	}
	return buf
}

// DecodeFrameResponse deserializes a frame response message.
func DecodeFrameResponse(msg []byte) (*FrameResponse, error) {
	if len(msg) < 6 || msg[0] != TagFrameResponse {
		return nil, fmt.Errorf("%w: frame response header too short", ErrMalformedPacket)
	}
	resp := &FrameResponse{
		Type:         msg[1],
		RemoteWidth:  binary.BigEndian.Uint16(msg[2:4]),
		RemoteHeight: binary.BigEndian.Uint16(msg[4:6]),
	}
	switch resp.Type {
	case FrameEmpty:
		if len(msg) != 6 {
			return nil, fmt.Errorf("%w: empty frame must be 6 bytes", ErrMalformedPacket)
		}
	case FrameFull:
		resp.JPEG = msg[6:]
	case FramePartial:
		if len(msg) < 10 {
			return nil, fmt.Errorf("%w: partial frame header too short", ErrMalformedPacket)
		}
		resp.CropX = binary.BigEndian.Uint16(msg[6:8])
		resp.CropY = binary.BigEndian.Uint16(msg[8:10])
		resp.JPEG = msg[10:]
	default:
		return nil, fmt.Errorf("%w: unknown frame type", ErrMalformedPacket)
	}
	return resp, nil
}

// EncodeLogin serializes the first client message of a session.
func EncodeLogin(password string) []byte {
	buf := make([]byte, 3+len(password))
	buf[0] = TagFrameRequest
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(password)))
	copy(buf[3:], password)
	return buf
}

// DecodeLogin deserializes the first client message of a session.
func DecodeLogin(msg []byte) (string, error) {
	if len(msg) < 3 || msg[0] != TagFrameRequest {
		return "", fmt.Errorf("%w: login header too short", ErrMalformedPacket)
	}
	n := int(binary.BigEndian.Uint16(msg[1:3]))
	if len(msg) != 3+n {
		return "", fmt.Errorf("%w: login length mismatch", ErrMalformedPacket)
	}
	return string(msg[3:]), nil
}

// EncodeAuthResult serializes the server's answer to a login.
func EncodeAuthResult(status byte) []byte {
	return []byte{TagFrameRequest, status}
}

// DecodeAuthResult deserializes the server's answer to a login.
func DecodeAuthResult(msg []byte) (byte, error) {
	if len(msg) != 2 || msg[0] != TagFrameRequest {
		return 0, fmt.Errorf("%w: auth result must be 2 bytes", ErrMalformedPacket)
	}
	return msg[1], nil
}
