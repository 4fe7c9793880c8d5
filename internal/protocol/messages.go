package protocol

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ChunkSize       int    `json:"chunk_size"`
	TexturesDigest  string `json:"textures_digest,omitempty"`
	TextureCount    int    `json:"texture_count,omitempty"`
}

// EDIT (client -> server): replace the block at a world position.
type EditMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ID              string   `json:"id,omitempty"`
	Pos             [3]int32 `json:"pos"`
	Block           string   `json:"block"`
}

// VIEW (client -> server): the camera streaming is centred on.
type ViewMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float32 `json:"pos"`
	Dir             [3]float32 `json:"dir"`
	FovY            float32    `json:"fov_y,omitempty"`
	Aspect          float32    `json:"aspect,omitempty"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

func NewAck(ackFor string, code, message string) AckMsg {
	return AckMsg{
		Type:            TypeAck,
		ProtocolVersion: Version,
		AckFor:          ackFor,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
	}
}
