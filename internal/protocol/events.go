package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Input event type codes as they appear on the wire.
const (
	eventMouseMove   = 0
	eventMouseDown   = 1
	eventMouseUp     = 2
	eventMouseScroll = 3
	eventKeyDown     = 4
	eventKeyUp       = 5
)

// Mouse buttons.
const (
	ButtonLeft   = 1
	ButtonMiddle = 2
	ButtonRight  = 3
)

// Event is one decoded input record. The wire keeps the positional JSON
// arrays of the original protocol; in memory each kind is its own
// struct so arity and types are checked once, at decode time.
type Event interface {
	eventType() int
}

// MouseMove places the cursor at viewport coordinates (X, Y).
type MouseMove struct {
	X, Y int
}

// MouseDown presses Button at viewport coordinates (X, Y).
type MouseDown struct {
	X, Y   int
	Button int
}

// MouseUp releases Button at viewport coordinates (X, Y).
type MouseUp struct {
	X, Y   int
	Button int
}

// MouseScroll scrolls by Dy notches at viewport coordinates (X, Y).
// Positive Dy scrolls up.
type MouseScroll struct {
	X, Y int
	Dy   int
}

// KeyDown presses the key named Key in the synthesizer's vocabulary.
type KeyDown struct {
	Key string
}

// KeyUp releases the key named Key.
type KeyUp struct {
	Key string
}

func (MouseMove) eventType() int   { return eventMouseMove }
func (MouseDown) eventType() int   { return eventMouseDown }
func (MouseUp) eventType() int     { return eventMouseUp }
func (MouseScroll) eventType() int { return eventMouseScroll }
func (KeyDown) eventType() int     { return eventKeyDown }
func (KeyUp) eventType() int       { return eventKeyUp }

// EncodeInput serializes an input batch to wire format.
func EncodeInput(events []Event) ([]byte, error) {
	records := make([][]any, len(events))
	for i, ev := range events {
		switch e := ev.(type) {
		case MouseMove:
			records[i] = []any{eventMouseMove, e.X, e.Y}
		case MouseDown:
			records[i] = []any{eventMouseDown, e.X, e.Y, e.Button}
		case MouseUp:
			records[i] = []any{eventMouseUp, e.X, e.Y, e.Button}
		case MouseScroll:
			records[i] = []any{eventMouseScroll, e.X, e.Y, e.Dy}
		case KeyDown:
			records[i] = []any{eventKeyDown, e.Key}
		case KeyUp:
			records[i] = []any{eventKeyUp, e.Key}
		default:
			return nil, fmt.Errorf("unknown event %T", ev)
		}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return append([]byte{TagInput}, body...), nil
}

// DecodeInput deserializes an input batch. Any record with a wrong
// arity or element type rejects the whole batch.
func DecodeInput(msg []byte) ([]Event, error) {
	if len(msg) < 1 || msg[0] != TagInput {
		return nil, fmt.Errorf("%w: input packet missing tag", ErrMalformedPacket)
	}
	var records [][]json.RawMessage
	if err := json.Unmarshal(msg[1:], &records); err != nil {
		return nil, fmt.Errorf("%w: input payload is not a JSON array of records: %v", ErrMalformedPacket, err)
	}
	events := make([]Event, 0, len(records))
	for i, rec := range records {
		ev, err := decodeRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedPacket, i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeRecord(rec []json.RawMessage) (Event, error) {
	if len(rec) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	kind, err := decodeInt(rec[0])
	if err != nil {
		return nil, fmt.Errorf("event type: %v", err)
	}
	switch kind {
	case eventMouseMove:
		x, y, err := decodeCoords(rec, 3)
		if err != nil {
			return nil, err
		}
		return MouseMove{X: x, Y: y}, nil
	case eventMouseDown, eventMouseUp:
		x, y, err := decodeCoords(rec, 4)
		if err != nil {
			return nil, err
		}
		button, err := decodeInt(rec[3])
		if err != nil {
			return nil, fmt.Errorf("button: %v", err)
		}
		if kind == eventMouseDown {
			return MouseDown{X: x, Y: y, Button: button}, nil
		}
		return MouseUp{X: x, Y: y, Button: button}, nil
	case eventMouseScroll:
		x, y, err := decodeCoords(rec, 4)
		if err != nil {
			return nil, err
		}
		dy, err := decodeInt(rec[3])
		if err != nil {
			return nil, fmt.Errorf("scroll delta: %v", err)
		}
		return MouseScroll{X: x, Y: y, Dy: dy}, nil
	case eventKeyDown, eventKeyUp:
		if len(rec) != 2 {
			return nil, fmt.Errorf("key event wants 2 elements, got %d", len(rec))
		}
		var key string
		if err := json.Unmarshal(rec[1], &key); err != nil {
			return nil, fmt.Errorf("keycode: %v", err)
		}
		if kind == eventKeyDown {
			return KeyDown{Key: key}, nil
		}
		return KeyUp{Key: key}, nil
	default:
		return nil, fmt.Errorf("unknown event type %d", kind)
	}
}

func decodeCoords(rec []json.RawMessage, arity int) (x, y int, err error) {
	if len(rec) != arity {
		return 0, 0, fmt.Errorf("event type %s wants %d elements, got %d", rec[0], arity, len(rec))
	}
	if x, err = decodeInt(rec[1]); err != nil {
		return 0, 0, fmt.Errorf("x: %v", err)
	}
	if y, err = decodeInt(rec[2]); err != nil {
		return 0, 0, fmt.Errorf("y: %v", err)
	}
	return x, y, nil
}

// decodeInt accepts any JSON number and rounds it to the nearest
// integer, matching the browser clients that emit fractional
// coordinates on zoomed pages.
func decodeInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	return int(math.Round(f)), nil
}
