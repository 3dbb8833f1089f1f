// Command client runs the player side of the cloud gaming relay: it
// requests a game session from the front-end UI channel, receives and
// renders the host's media stream, and captures local keyboard/mouse
// input back to the host.
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
	turnUser := flag.String("turn-user", "client", "TURN username (or identity to derive ephemeral credentials for)")
	sntpPool := flag.String("sntp-pool", "pool.ntp.org", "SNTP pool address for the latency probe")
	flag.Parse()

	iceServers := []webrtctransport.ICEServerConfig{{URLs: []string{*stunURL}}}
	if *turnURL != "" {
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
		VideoWindow:  mediagraph.VideoConfig{},
		Audio:        mediagraph.AudioConfig{Channels: 2, SampleRate: 48000},
	}

	orch, err := session.New(cfg)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("client: %v", err)
	}
}
