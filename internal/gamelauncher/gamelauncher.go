// Package gamelauncher defines the orchestrator's seam onto game-process
// lifecycle management. Per §1's Non-goals (game launching, window handle
// discovery heuristics, process-kill semantics beyond terminating the
// handle we were given), this package carries no real implementation — the
// original engine's initialize_game/select_game_window are themselves
// opaque platform calls. The orchestrator still calls through this
// interface so its state machine is complete and testable with a fake.
package gamelauncher

import "context"

// Handle represents a launched game process the orchestrator can later
// terminate.
type Handle interface {
	// Terminate ends the process. Per the Non-goals, this is the full
	// extent of process-kill semantics — no escalation, no timeout tree.
	Terminate() error
}

// Launcher starts a game and reports the handle the orchestrator holds for
// the lifetime of the session.
type Launcher interface {
	Launch(ctx context.Context, gamePath string) (Handle, error)
}

// Noop is the only implementation this repository carries: launching and
// window discovery are out of scope, so Launch returns a handle whose
// Terminate is itself a no-op.
type Noop struct{}

// Launch returns a handle immediately without starting any process.
func (Noop) Launch(ctx context.Context, gamePath string) (Handle, error) {
	return noopHandle{}, nil
}

type noopHandle struct{}

func (noopHandle) Terminate() error { return nil }
