// Command host runs the offerer side of the cloud gaming relay: it waits
// for the local UI to request a session on the front-end TCP port, then
// captures and streams the game window plus system audio to whichever
// client the broker pairs it with, injecting that client's input back into
// the game. Flags follow the teacher's own CLI convention (flag package,
// TURN credentials from the environment) rather than a config-file loader,
// per spec.md's Non-goal on configuration loading.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/tpp-cloud-gaming/relay/internal/gamelauncher"
	"github.com/tpp-cloud-gaming/relay/internal/mediagraph"
	"github.com/tpp-cloud-gaming/relay/internal/session"
	"github.com/tpp-cloud-gaming/relay/internal/turncred"
	"github.com/tpp-cloud-gaming/relay/internal/webrtctransport"
)

func main() {
	signalingURL := flag.String("signaling", "wss://localhost:8443/ws/hub", "signaling broker WebSocket URL")
	stunURL := flag.String("stun", "stun:stun.l.google.com:19302", "STUN server URL")
	turnURL := flag.String("turn", "", "optional TURN server URL")
	turnUser := flag.String("turn-user", "host", "TURN username (or identity to derive ephemeral credentials for)")
	sntpPool := flag.String("sntp-pool", "pool.ntp.org", "SNTP pool address for the latency probe")
	showCursor := flag.Bool("show-cursor", false, "include the OS cursor in the captured video")
	bitrateKbps := flag.Int("bitrate-kbps", 10000, "target video encode bitrate")
	flag.Parse()

	iceServers := []webrtctransport.ICEServerConfig{{URLs: []string{*stunURL}}}
	if *turnURL != "" {
		// TURN_SECRET configures the coturn static-auth-secret scheme
		// (ephemeral HMAC credentials); TURN_PASS is a fixed password
		// for a statically provisioned TURN user. One of the two must
		// be set for the TURN server to be usable.
		username, password := *turnUser, os.Getenv("TURN_PASS")
		if secret := os.Getenv("TURN_SECRET"); secret != "" {
			username, password = turncred.Generate(secret, *turnUser, time.Hour)
		}
		iceServers = append(iceServers, webrtctransport.ICEServerConfig{
			URLs:       []string{*turnURL},
			Username:   username,
			Credential: password,
		})
	}

	cfg := session.Config{
		SignalingURL: *signalingURL,
		ICEServers:   iceServers,
		SNTPPool:     *sntpPool,
		Launcher:     gamelauncher.Noop{},
		VideoWindow:  mediagraph.VideoConfig{ShowCursor: *showCursor, Framerate: 60, BitrateKbps: *bitrateKbps},
		Audio:        mediagraph.AudioConfig{Channels: 2, SampleRate: 48000},
	}

	orch, err := session.New(cfg)
	if err != nil {
		log.Fatalf("host: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("host: %v", err)
	}
}
