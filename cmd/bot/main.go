package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/protocol"
)

// bot walks a camera through the world and sprinkles edits along the way,
// which keeps the streaming server building, meshing and saving.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		speed    = flag.Float64("speed", 12, "camera speed in blocks per second")
		rate     = flag.Duration("rate", 200*time.Millisecond, "interval between VIEW updates")
		editsPer = flag.Int("edits", 2, "edits sent per VIEW update")
		block    = flag.String("block", "core::stone", "block id placed by edits")
		seed     = flag.Uint64("seed", 1, "rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeWelcome:
				var w protocol.WelcomeMsg
				if err := json.Unmarshal(msg, &w); err != nil {
					continue
				}
				logger.Printf("WELCOME session=%s chunk_size=%d textures=%d", w.SessionID, w.ChunkSize, w.TextureCount)
			case protocol.TypeAck:
				var a protocol.AckMsg
				if err := json.Unmarshal(msg, &a); err != nil {
					continue
				}
				if !a.Accepted {
					logger.Printf("rejected %s: %s %s", a.AckFor, a.Code, a.Message)
				}
			}
		}
	}()

	r := rand.New(rand.NewPCG(*seed, *seed+1))
	pos := [3]float32{0, 64, 0}
	dir := [3]float32{0, -0.2, -1}
	step := float32(*speed * rate.Seconds())
	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if n%50 == 0 {
			// turn somewhere new
			dir[0], dir[2] = r.Float32()*2-1, r.Float32()*2-1
		}
		for i := range pos {
			pos[i] += dir[i] * step
		}
		view := protocol.ViewMsg{
			Type:            protocol.TypeView,
			ProtocolVersion: protocol.Version,
			Pos:             pos,
			Dir:             dir,
			FovY:            70,
			Width:           1280,
			Height:          720,
		}
		if err := conn.WriteJSON(view); err != nil {
			logger.Printf("send VIEW: %v", err)
			return
		}
		for i := 0; i < *editsPer; i++ {
			edit := protocol.EditMsg{
				Type:            protocol.TypeEdit,
				ProtocolVersion: protocol.Version,
				ID:              fmt.Sprintf("e%d_%d", n, i),
				Pos: [3]int32{
					int32(pos[0]) + r.Int32N(33) - 16,
					int32(pos[1]) - r.Int32N(64),
					int32(pos[2]) + r.Int32N(33) - 16,
				},
				Block: *block,
			}
			if err := conn.WriteJSON(edit); err != nil {
				logger.Printf("send EDIT: %v", err)
				return
			}
		}
	}
}
