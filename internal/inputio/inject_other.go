//go:build !windows

package inputio

import (
	"github.com/tpp-cloud-gaming/relay/internal/inputevent"
	"github.com/tpp-cloud-gaming/relay/internal/logx"
)

// Synthetic input injection has no non-Windows implementation in the
// original engine (output/button_controller.rs and
// output/mouse_controller.rs both call into winapi::SendInput directly).
// On other platforms injection is a logged no-op rather than a build
// failure, so a client node can still run the rest of the session engine
// for development and testing off Windows.

func init() {
	injectKeyOS = func(vk uint8, up bool) {
		logx.Info(component, "key injection unsupported on this platform", logx.Fields{"vk": vk, "up": up})
	}
	injectMouseButtonOS = func(btn inputevent.MouseButton, up bool) {
		logx.Info(component, "mouse button injection unsupported on this platform", logx.Fields{"button": btn, "up": up})
	}
	injectScrollOS = func(axis inputevent.Axis, delta float32) {
		logx.Info(component, "scroll injection unsupported on this platform", logx.Fields{"axis": axis, "delta": delta})
	}
	injectMouseMoveOS = func(dx, dy int32) {
		logx.Info(component, "mouse move injection unsupported on this platform", logx.Fields{"dx": dx, "dy": dy})
	}
}
