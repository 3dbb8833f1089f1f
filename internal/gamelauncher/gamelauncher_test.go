package gamelauncher

import (
	"context"
	"testing"
)

func TestNoopLaunchAndTerminate(t *testing.T) {
	var l Launcher = Noop{}
	h, err := l.Launch(context.Background(), `C:\games\pong.exe`)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}
