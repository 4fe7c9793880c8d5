// Package ws accepts streaming clients over websocket: edits and viewpoint
// updates in, acknowledgements out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/registry"
	"voxelstream.ai/internal/stream"
	"voxelstream.ai/internal/voxel"
)

// Streamer is the part of the scheduler a session drives.
type Streamer interface {
	SubmitEdit(pos voxel.BlockPos, id atom.Atom) error
	SetViewpoint(v stream.Viewpoint)
}

// Blocks reports whether a block id is defined.
type Blocks interface {
	Def(id atom.Atom) (registry.BlockDef, bool)
}

type Options struct {
	Stream         Streamer
	Interner       *atom.Interner
	Blocks         Blocks
	TexturesDigest string
	TextureCount   int
	Logger         *log.Logger
}

type Server struct {
	stream Streamer
	in     *atom.Interner
	blocks Blocks
	digest string
	ntex   int
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		stream: opts.Stream,
		in:     opts.Interner,
		blocks: opts.Blocks,
		digest: opts.TexturesDigest,
		ntex:   opts.TextureCount,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       sessionID,
			ChunkSize:       voxel.ChunkSize,
			TexturesDigest:  s.digest,
			TextureCount:    s.ntex,
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}
		s.log.Printf("session %s: connected from %s", sessionID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan []byte, 32)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			default:
				s.log.Printf("session %s: outbound queue full, dropping %T", sessionID, v)
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if ack, reply := s.handle(msg); reply {
				send(ack)
			}
		}
		s.log.Printf("session %s: closed", sessionID)
	}
}

// handle applies one inbound message. It returns the ack to send, if any.
func (s *Server) handle(msg []byte) (protocol.AckMsg, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewAck("", protocol.ErrProtoBadRequest, "malformed json"), true
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewAck(base.Type, protocol.ErrProtoVersion, "expected protocol_version "+protocol.Version), true
	}
	if err := protocol.Validate(base.Type, msg); err != nil {
		return protocol.NewAck(base.Type, protocol.ErrProtoBadRequest, err.Error()), true
	}

	switch base.Type {
	case protocol.TypeEdit:
		var m protocol.EditMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewAck(base.Type, protocol.ErrProtoBadRequest, err.Error()), true
		}
		return s.edit(m), true
	case protocol.TypeView:
		var m protocol.ViewMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return protocol.NewAck(base.Type, protocol.ErrProtoBadRequest, err.Error()), true
		}
		s.stream.SetViewpoint(viewpoint(m))
		return protocol.AckMsg{}, false
	}
	return protocol.NewAck(base.Type, protocol.ErrProtoBadRequest, "unsupported message type"), true
}

func (s *Server) edit(m protocol.EditMsg) protocol.AckMsg {
	ackFor := m.ID
	if ackFor == "" {
		ackFor = protocol.TypeEdit
	}
	id := s.in.Intern(m.Block)
	if id != s.in.Air() && s.blocks != nil {
		if _, ok := s.blocks.Def(id); !ok {
			return protocol.NewAck(ackFor, protocol.ErrUnknownBlock, "unknown block "+m.Block)
		}
	}
	pos := voxel.BlockPos{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
	if err := s.stream.SubmitEdit(pos, id); err != nil {
		if errors.Is(err, stream.ErrEditQueueFull) {
			return protocol.NewAck(ackFor, protocol.ErrRateLimit, err.Error())
		}
		return protocol.NewAck(ackFor, protocol.ErrInternal, err.Error())
	}
	return protocol.NewAck(ackFor, "", "")
}

func viewpoint(m protocol.ViewMsg) stream.Viewpoint {
	fov := m.FovY
	if fov == 0 {
		fov = 70
	}
	aspect := m.Aspect
	if aspect == 0 {
		aspect = 1
		if m.Height > 0 {
			aspect = float32(m.Width) / float32(m.Height)
		}
	}
	return stream.NewViewpoint(mgl32.Vec3(m.Pos), mgl32.Vec3(m.Dir), fov, aspect, m.Width, m.Height)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
