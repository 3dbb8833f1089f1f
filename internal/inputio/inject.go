package inputio

import (
	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
	"github.com/tpp-cloud-gaming/relay/internal/logx"
)

const component = "inputio"

// DataChannel is the narrow surface InjectKeyboard/InjectMouse need from a
// WebRTC data channel, satisfied by an adapter in webrtctransport and by a
// fake in tests.
type DataChannel interface {
	OnMessage(func(data []byte))
}

// injectKeyOS, injectMouseButtonOS, injectScrollOS and injectMouseMoveOS
// perform the actual OS-level synthetic input. Implemented per
// platform (see inject_windows.go / inject_other.go), following the
// teacher's showNotificationOS build-tag split.
var injectKeyOS = func(vk uint8, up bool) {}
var injectMouseButtonOS = func(btn inputevent.MouseButton, up bool) {}
var injectScrollOS = func(axis inputevent.Axis, delta float32) {}
var injectMouseMoveOS = func(dx, dy int32) {}

// StartKeyboardInject wires the inbound "keyboard" channel to OS injection.
// Malformed frames are logged and dropped, never fatal, per §4.6.
func StartKeyboardInject(dc DataChannel) {
	dc.OnMessage(func(data []byte) {
		e, err := DecodeKeyboardFrame(string(data))
		if err != nil {
			logx.Info(component, "dropping malformed keyboard frame", logx.Fields{"err": err})
			return
		}
		switch e.Kind {
		case inputevent.KeyDown:
			injectKeyOS(e.VK, false)
		case inputevent.KeyUp:
			injectKeyOS(e.VK, true)
		case inputevent.MouseButtonDown:
			injectMouseButtonOS(e.Button, false)
		case inputevent.MouseButtonUp:
			injectMouseButtonOS(e.Button, true)
		case inputevent.Scroll:
			injectScrollOS(e.Axis, e.Delta)
		}
	})
}

// StartMouseInject wires the inbound "mouse" channel to OS injection.
func StartMouseInject(dc DataChannel) {
	dc.OnMessage(func(data []byte) {
		e, err := DecodeMouseFrame(string(data))
		if err != nil {
			logx.Info(component, "dropping malformed mouse frame", logx.Fields{"err": err})
			return
		}
		injectMouseMoveOS(e.DX, e.DY)
	})
}
