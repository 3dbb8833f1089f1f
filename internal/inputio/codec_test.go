package inputio

import (
	"testing"

	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
)

func TestEncodeKeyboardFrame(t *testing.T) {
	cases := []struct {
		name string
		e    inputevent.Event
		want string
	}{
		{"key down", inputevent.Event{Kind: inputevent.KeyDown, VK: 65}, "p65"},
		{"key up", inputevent.Event{Kind: inputevent.KeyUp, VK: 13}, "r13"},
		{"mouse down", inputevent.Event{Kind: inputevent.MouseButtonDown, Button: inputevent.ButtonRight}, "m1"},
		{"mouse up", inputevent.Event{Kind: inputevent.MouseButtonUp, Button: inputevent.ButtonMiddle}, "t2"},
		{"scroll vertical", inputevent.Event{Kind: inputevent.Scroll, Axis: inputevent.AxisVertical, Delta: 1.5}, "v1.5"},
		{"scroll horizontal", inputevent.Event{Kind: inputevent.Scroll, Axis: inputevent.AxisHorizontal, Delta: -2}, "h-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeKeyboardFrame(tc.e)
			if err != nil {
				t.Fatalf("EncodeKeyboardFrame: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeKeyboardFrameRejectsMove(t *testing.T) {
	if _, err := EncodeKeyboardFrame(inputevent.Event{Kind: inputevent.MouseMoveRelative}); err == nil {
		t.Fatal("expected an error for a motion event on the keyboard channel")
	}
}

func TestEncodeMouseFrame(t *testing.T) {
	got, err := EncodeMouseFrame(inputevent.Event{Kind: inputevent.MouseMoveRelative, DX: -3, DY: 7})
	if err != nil {
		t.Fatalf("EncodeMouseFrame: %v", err)
	}
	if got != "-3 7" {
		t.Fatalf("got %q, want %q", got, "-3 7")
	}
}

func TestDecodeKeyboardFrameRoundTrip(t *testing.T) {
	cases := []string{"p65", "r13", "m0", "t4", "v1.5", "h-2"}
	for _, frame := range cases {
		t.Run(frame, func(t *testing.T) {
			e, err := DecodeKeyboardFrame(frame)
			if err != nil {
				t.Fatalf("DecodeKeyboardFrame(%q): %v", frame, err)
			}
			re, err := EncodeKeyboardFrame(e)
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if re != frame {
				t.Fatalf("round trip: got %q, want %q", re, frame)
			}
		})
	}
}

func TestDecodeKeyboardFrameMalformed(t *testing.T) {
	cases := []string{"", "p", "pxyz", "mzz", "m9", "qfoo"}
	for _, frame := range cases {
		if _, err := DecodeKeyboardFrame(frame); err == nil {
			t.Fatalf("expected error decoding %q", frame)
		}
	}
}

func TestDecodeMouseFrame(t *testing.T) {
	e, err := DecodeMouseFrame("-5 10")
	if err != nil {
		t.Fatalf("DecodeMouseFrame: %v", err)
	}
	if e.DX != -5 || e.DY != 10 {
		t.Fatalf("got dx=%d dy=%d, want -5 10", e.DX, e.DY)
	}
}

func TestDecodeMouseFrameMalformed(t *testing.T) {
	cases := []string{"", "5", "5 x", "x 5", "5 10 15"}
	for _, frame := range cases {
		if _, err := DecodeMouseFrame(frame); err == nil {
			t.Fatalf("expected error decoding %q", frame)
		}
	}
}

func TestEventIsDroppable(t *testing.T) {
	cases := []struct {
		name string
		e    inputevent.Event
		want bool
	}{
		{"blocked left meta", inputevent.Event{Kind: inputevent.KeyDown, VK: 0x5B}, true},
		{"blocked right meta", inputevent.Event{Kind: inputevent.KeyUp, VK: 0x5C}, true},
		{"ordinary key", inputevent.Event{Kind: inputevent.KeyDown, VK: 65}, false},
		{"zero move", inputevent.Event{Kind: inputevent.MouseMoveRelative, DX: 0, DY: 0}, true},
		{"nonzero move", inputevent.Event{Kind: inputevent.MouseMoveRelative, DX: 1, DY: 0}, false},
		{"zero scroll", inputevent.Event{Kind: inputevent.Scroll, Delta: 0}, true},
		{"nonzero scroll", inputevent.Event{Kind: inputevent.Scroll, Delta: 0.1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.e.IsDroppable(); got != tc.want {
				t.Fatalf("IsDroppable() = %v, want %v", got, tc.want)
			}
		})
	}
}
