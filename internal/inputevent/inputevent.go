// Package inputevent defines the tagged input-event record shared by
// capture and injection — grounded on input/input_capture.rs and
// output/{button_controller,mouse_controller}.rs, which encode the same
// six variants ad hoc inline; here they are a single named type so both
// sides of the wire agree on shape.
package inputevent

// Kind discriminates the six event variants named in §3.
type Kind int

const (
	KeyDown Kind = iota
	KeyUp
	MouseButtonDown
	MouseButtonUp
	Scroll
	MouseMoveRelative
)

// Axis distinguishes the two scroll directions.
type Axis int

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

// MouseButton is the 0..4 button index shared by capture and inject.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
	ButtonX1
	ButtonX2
)

// Event is the tagged record. Only the fields relevant to Kind are set.
type Event struct {
	Kind   Kind
	VK     uint8       // KeyDown / KeyUp
	Button MouseButton // MouseButtonDown / MouseButtonUp
	Axis   Axis        // Scroll
	Delta  float32     // Scroll
	DX, DY int32       // MouseMoveRelative
}

// BlockedVK is the platform-blocked key set dropped at capture: left and
// right "meta"/"super" (Windows key on Windows, Super on other platforms).
var BlockedVK = map[uint8]bool{
	0x5B: true, // VK_LWIN
	0x5C: true, // VK_RWIN
}

// IsDroppable reports the capture-time invariants from §3: blocked keys,
// zero-delta moves, and zero-delta scrolls are never emitted.
func (e Event) IsDroppable() bool {
	switch e.Kind {
	case KeyDown, KeyUp:
		return BlockedVK[e.VK]
	case MouseMoveRelative:
		return e.DX == 0 && e.DY == 0
	case Scroll:
		return e.Delta == 0
	default:
		return false
	}
}
