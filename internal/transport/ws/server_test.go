package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/protocol"
	"voxelstream.ai/internal/registry"
	"voxelstream.ai/internal/stream"
	"voxelstream.ai/internal/voxel"
)

type fakeStream struct {
	mu    sync.Mutex
	edits []voxel.BlockPos
	full  bool
	views chan stream.Viewpoint
}

func (f *fakeStream) SubmitEdit(pos voxel.BlockPos, id atom.Atom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return stream.ErrEditQueueFull
	}
	f.edits = append(f.edits, pos)
	return nil
}

func (f *fakeStream) SetViewpoint(v stream.Viewpoint) { f.views <- v }

func dial(t *testing.T, f *fakeStream) *websocket.Conn {
	t.Helper()
	in := atom.New(0)
	reg, err := registry.New([]registry.BlockDef{{ID: "stone", Textures: registry.BlockTextures{Top: "stone.png"}}}, in)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	srv := NewServer(Options{Stream: f, Interner: in, Blocks: reg, TexturesDigest: reg.TexturesDigest, TextureCount: len(reg.TexturePaths())})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var welcome protocol.WelcomeMsg
	readJSON(t, conn, &welcome)
	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" || welcome.ChunkSize != voxel.ChunkSize {
		t.Fatalf("welcome=%+v", welcome)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
}

func send(t *testing.T, conn *websocket.Conn, raw string) protocol.AckMsg {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ack protocol.AckMsg
	readJSON(t, conn, &ack)
	return ack
}

func TestServer_EditAccepted(t *testing.T) {
	f := &fakeStream{views: make(chan stream.Viewpoint, 1)}
	conn := dial(t, f)

	ack := send(t, conn, `{"type":"EDIT","protocol_version":"1.0","id":"e1","pos":[1,-2,3],"block":"stone"}`)
	if !ack.Accepted || ack.AckFor != "e1" {
		t.Fatalf("ack=%+v", ack)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) != 1 || f.edits[0] != (voxel.BlockPos{X: 1, Y: -2, Z: 3}) {
		t.Fatalf("edits=%v", f.edits)
	}
}

func TestServer_EditRejections(t *testing.T) {
	f := &fakeStream{views: make(chan stream.Viewpoint, 1)}
	conn := dial(t, f)

	cases := []struct {
		raw  string
		code string
	}{
		{`{"type":"EDIT","protocol_version":"1.0","id":"e1","pos":[0,0,0],"block":"obsidian"}`, protocol.ErrUnknownBlock},
		{`{"type":"EDIT","protocol_version":"0.1","pos":[0,0,0],"block":"stone"}`, protocol.ErrProtoVersion},
		{`{"type":"EDIT","protocol_version":"1.0","pos":[0,0],"block":"stone"}`, protocol.ErrProtoBadRequest},
		{`not json`, protocol.ErrProtoBadRequest},
	}
	for _, c := range cases {
		ack := send(t, conn, c.raw)
		if ack.Accepted || ack.Code != c.code {
			t.Fatalf("%s: ack=%+v want code %s", c.raw, ack, c.code)
		}
	}

	f.mu.Lock()
	f.full = true
	f.mu.Unlock()
	ack := send(t, conn, `{"type":"EDIT","protocol_version":"1.0","pos":[0,0,0],"block":"core::air"}`)
	if ack.Code != protocol.ErrRateLimit {
		t.Fatalf("ack=%+v want %s", ack, protocol.ErrRateLimit)
	}
}

func TestServer_ViewSetsViewpoint(t *testing.T) {
	f := &fakeStream{views: make(chan stream.Viewpoint, 1)}
	conn := dial(t, f)

	msg := `{"type":"VIEW","protocol_version":"1.0","pos":[40,8,-70],"dir":[0,0,-1],"fov_y":60,"width":640,"height":480}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case v := <-f.views:
		if got := v.Chunk(); got != (voxel.ChunkPos{X: 1, Y: 0, Z: -3}) {
			t.Fatalf("viewpoint chunk=%s", got)
		}
		if v.Width != 640 || v.Height != 480 {
			t.Fatalf("viewport=%dx%d", v.Width, v.Height)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("viewpoint not delivered")
	}
}
