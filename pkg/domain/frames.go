package domain

// Frame types exchanged over the chat WebSocket.
const (
	FrameInit    = "init"
	FrameChunk   = "chunk"
	FrameMessage = "message"
	FrameError   = "error"
)

// ClientFrame is a frame sent by a chat client. A frame is one of three
// shapes: an init handshake (Type=="init", APIKey set), a reset control
// (Reset==true) or a user query (Query set).
type ClientFrame struct {
	Type           string `json:"type,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Query          string `json:"query,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Reset          bool   `json:"reset,omitempty"`
}

// ServerFrame is a frame sent by the chat relay. "chunk" carries an
// incremental fragment of a streamed reply, "message" a complete reply and
// "error" a relay-side failure description.
type ServerFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}
