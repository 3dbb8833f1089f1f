// Package inputio implements the ASCII wire codec and the two data-channel
// directions (capture → wire, wire → inject) for keyboard/mouse input —
// grounded on input/input_capture.rs (capture side) and
// output/{button_controller,mouse_controller}.rs (inject side), with the
// exact action-byte constants from output/output_const.rs.
package inputio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
)

// Data-channel labels: motion goes to "mouse", everything else to
// "keyboard" (§4.6's terminology — "keyboard" carries keys, buttons, and
// scrolls, despite the name).
const (
	KeyboardChannelLabel = "keyboard"
	MouseChannelLabel    = "mouse"
)

const (
	actionKeyPress     = 'p'
	actionKeyRelease   = 'r'
	actionMousePress   = 'm'
	actionMouseRelease = 't'
	actionScrollV      = 'v'
	actionScrollH      = 'h'
)

// EncodeKeyboardFrame renders one non-motion event as the ASCII frame sent
// on the "keyboard" channel. MouseMoveRelative is not valid here; callers
// route motion through EncodeMouseFrame instead.
func EncodeKeyboardFrame(e inputevent.Event) (string, error) {
	switch e.Kind {
	case inputevent.KeyDown:
		return fmt.Sprintf("%c%d", actionKeyPress, e.VK), nil
	case inputevent.KeyUp:
		return fmt.Sprintf("%c%d", actionKeyRelease, e.VK), nil
	case inputevent.MouseButtonDown:
		return fmt.Sprintf("%c%d", actionMousePress, e.Button), nil
	case inputevent.MouseButtonUp:
		return fmt.Sprintf("%c%d", actionMouseRelease, e.Button), nil
	case inputevent.Scroll:
		if e.Axis == inputevent.AxisVertical {
			return fmt.Sprintf("%c%v", actionScrollV, e.Delta), nil
		}
		return fmt.Sprintf("%c%v", actionScrollH, e.Delta), nil
	default:
		return "", fmt.Errorf("inputio: %v is not a keyboard-channel event", e.Kind)
	}
}

// EncodeMouseFrame renders a MouseMoveRelative event as "dx dy".
func EncodeMouseFrame(e inputevent.Event) (string, error) {
	if e.Kind != inputevent.MouseMoveRelative {
		return "", fmt.Errorf("inputio: %v is not a mouse-channel event", e.Kind)
	}
	return fmt.Sprintf("%d %d", e.DX, e.DY), nil
}

// DecodeKeyboardFrame parses one inbound "keyboard" channel frame.
// Malformed operands are reported as an error; callers log and drop rather
// than treat it as fatal, per §4.6.
func DecodeKeyboardFrame(frame string) (inputevent.Event, error) {
	if len(frame) < 2 {
		return inputevent.Event{}, fmt.Errorf("inputio: frame too short: %q", frame)
	}
	action, operand := frame[0], frame[1:]
	switch action {
	case actionKeyPress, actionKeyRelease:
		vk, err := strconv.ParseUint(operand, 10, 8)
		if err != nil {
			return inputevent.Event{}, fmt.Errorf("inputio: bad vk operand %q: %w", operand, err)
		}
		kind := inputevent.KeyDown
		if action == actionKeyRelease {
			kind = inputevent.KeyUp
		}
		return inputevent.Event{Kind: kind, VK: uint8(vk)}, nil
	case actionMousePress, actionMouseRelease:
		btn, err := strconv.Atoi(operand)
		if err != nil || btn < 0 || btn > 4 {
			return inputevent.Event{}, fmt.Errorf("inputio: bad button operand %q", operand)
		}
		kind := inputevent.MouseButtonDown
		if action == actionMouseRelease {
			kind = inputevent.MouseButtonUp
		}
		return inputevent.Event{Kind: kind, Button: inputevent.MouseButton(btn)}, nil
	case actionScrollV, actionScrollH:
		delta, err := strconv.ParseFloat(operand, 32)
		if err != nil {
			return inputevent.Event{}, fmt.Errorf("inputio: bad scroll operand %q: %w", operand, err)
		}
		axis := inputevent.AxisVertical
		if action == actionScrollH {
			axis = inputevent.AxisHorizontal
		}
		return inputevent.Event{Kind: inputevent.Scroll, Axis: axis, Delta: float32(delta)}, nil
	default:
		return inputevent.Event{}, fmt.Errorf("inputio: unrecognized action byte %q", action)
	}
}

// DecodeMouseFrame parses one inbound "mouse" channel frame, "dx dy".
func DecodeMouseFrame(frame string) (inputevent.Event, error) {
	parts := strings.Fields(frame)
	if len(parts) != 2 {
		return inputevent.Event{}, fmt.Errorf("inputio: malformed mouse frame %q", frame)
	}
	dx, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return inputevent.Event{}, fmt.Errorf("inputio: bad dx %q: %w", parts[0], err)
	}
	dy, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return inputevent.Event{}, fmt.Errorf("inputio: bad dy %q: %w", parts[1], err)
	}
	return inputevent.Event{Kind: inputevent.MouseMoveRelative, DX: int32(dx), DY: int32(dy)}, nil
}
