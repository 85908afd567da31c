package bridge

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Message types sent to the device and the widget UI.
const (
	TypeMediaLoad      = "media.load"
	TypeMediaPlay      = "media.play"
	TypeMediaPause     = "media.pause"
	TypeMediaStop      = "media.stop"
	TypeYouTubeLoad    = "youtube.load"
	TypeYouTubeCommand = "youtube.command"
	TypeYouTubeUnload  = "youtube.unload"
	TypeState          = "state"
	TypeRotation       = "rotation"
	TypeNotice         = "notice"
	TypeRole           = "role"
)

// Message types reported by the device and the widget UI.
const (
	TypeMediaEnded     = "media.ended"
	TypeMediaError     = "media.error"
	TypeYouTubeMessage = "youtube.message"
	TypeUIToggle       = "ui.toggle"
	TypeUIAdd          = "ui.add"
	TypeUIRemove       = "ui.remove"
	TypeUIPlay         = "ui.play"
	TypeUIShuffle      = "ui.shuffle"
	TypeUILoop         = "ui.loop"
)

// Roles carried in the Data field of a role message.
const (
	RolePrimary = "primary"
	RoleMirror  = "mirror"
)

// Message is the websocket envelope shared by every message type.
type Message struct {
	Type     string `json:"type"`
	Seq      uint64 `json:"seq,omitempty"`
	URL      string `json:"url,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Index    *int   `json:"index,omitempty"`
	Data     string `json:"data,omitempty"`
	EmbedURL string `json:"embedUrl,omitempty"`
	Preload  string `json:"preload,omitempty"`
	Message  string `json:"message,omitempty"`
	Angle    *int   `json:"angle,omitempty"`
	State    any    `json:"state,omitempty"`
	Notice   any    `json:"notice,omitempty"`
}

// Decode parses a websocket frame. Frames without a type are rejected.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, errors.Wrap(err, "failed to decode message")
	}
	if msg.Type == "" {
		return Message{}, errors.New("message has no type")
	}
	return msg, nil
}

// Encode serialises a message into a websocket frame.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s message", msg.Type)
	}
	return data, nil
}

// Int returns a pointer to v, for the optional numeric fields.
func Int(v int) *int {
	return &v
}
