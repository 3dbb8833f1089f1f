//go:build windows

package inputio

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
)

// Mirrors output/button_controller.rs's send_input_key / winput::press and
// output/mouse_controller.rs's Mouse::move_relative, reimplemented directly
// against golang.org/x/sys/windows.SendInput since no Go binding of the
// winput crate exists.

const (
	inputMouse    = 0
	inputKeyboard = 1

	keyEventFKeyUp    = 0x0002
	keyEventFScancode = 0x0008

	mouseEventFMove       = 0x0001
	mouseEventFLeftDown   = 0x0002
	mouseEventFLeftUp     = 0x0004
	mouseEventFRightDown  = 0x0008
	mouseEventFRightUp    = 0x0010
	mouseEventFMiddleDown = 0x0020
	mouseEventFMiddleUp   = 0x0040
	mouseEventFXDown      = 0x0080
	mouseEventFXUp        = 0x0100
	mouseEventFWheel      = 0x0800
	mouseEventFHWheel     = 0x01000

	xButton1 = 0x0001
	xButton2 = 0x0002
)

// mouseInputWire and keybdInputWire mirror the Windows INPUT struct for
// each of its two union variants we use (type tag + 8-byte alignment pad +
// the variant's fields, trailing-padded to the union's 32-byte width so
// SendInput reads a correctly sized record either way).
type mouseInputWire struct {
	typ         uint32
	_           uint32
	dx          int32
	dy          int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type keybdInputWire struct {
	typ         uint32
	_           uint32
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
	_           uint64 // pads to mouseInputWire's width
}

var procSendInput = windows.NewLazySystemDLL("user32.dll").NewProc("SendInput")

func sendMouseInput(w mouseInputWire) {
	w.typ = inputMouse
	procSendInput.Call(1, uintptr(unsafe.Pointer(&w)), unsafe.Sizeof(w))
}

func sendKeybdInput(w keybdInputWire) {
	w.typ = inputKeyboard
	procSendInput.Call(1, uintptr(unsafe.Pointer(&w)), unsafe.Sizeof(w))
}

func init() {
	injectKeyOS = func(vk uint8, up bool) {
		w := keybdInputWire{wVk: uint16(vk), wScan: keyEventFScancode, dwExtraInfo: 1}
		if up {
			w.dwFlags = keyEventFKeyUp
		}
		sendKeybdInput(w)
	}
	injectMouseButtonOS = func(btn inputevent.MouseButton, up bool) {
		var down, rel, data uint32
		switch btn {
		case inputevent.ButtonLeft:
			down, rel = mouseEventFLeftDown, mouseEventFLeftUp
		case inputevent.ButtonRight:
			down, rel = mouseEventFRightDown, mouseEventFRightUp
		case inputevent.ButtonMiddle:
			down, rel = mouseEventFMiddleDown, mouseEventFMiddleUp
		case inputevent.ButtonX1:
			down, rel, data = mouseEventFXDown, mouseEventFXUp, xButton1
		case inputevent.ButtonX2:
			down, rel, data = mouseEventFXDown, mouseEventFXUp, xButton2
		}
		flag := down
		if up {
			flag = rel
		}
		sendMouseInput(mouseInputWire{dwFlags: flag, mouseData: data})
	}
	injectScrollOS = func(axis inputevent.Axis, delta float32) {
		flag := uint32(mouseEventFWheel)
		if axis == inputevent.AxisHorizontal {
			flag = mouseEventFHWheel
		}
		sendMouseInput(mouseInputWire{dwFlags: flag, mouseData: uint32(int32(delta))})
	}
	injectMouseMoveOS = func(dx, dy int32) {
		sendMouseInput(mouseInputWire{dx: dx, dy: dy, dwFlags: mouseEventFMove})
	}
}
