// Package browser hosts the engine inside a web page. The DOM, WebAudio
// and WebGL bindings build only for GOOS=js through gopherjs; the message
// codec here is shared with native tooling.
package browser

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guidoenr/reflectube/internal/config"
)

// Page message types.
const (
	TypeUpdateSettings = "UPDATE_SETTINGS"
	TypeGetFPS         = "GET_FPS"
)

// Page selectors used to classify video containers.
const (
	ShortFormSelector = "ytd-reel-video-renderer"
	FloatingSelector  = "ytd-miniplayer"
	ThumbnailSelector = `meta[property="og:image"]`
)

// ErrUnknownMessage is returned for message types the page does not handle.
var ErrUnknownMessage = errors.New("browser: unknown message type")

// Message is a request posted to the page.
type Message struct {
	Type    string        `json:"type"`
	Payload *config.Patch `json:"payload,omitempty"`
}

// FPSReply answers GET_FPS.
type FPSReply struct {
	FPS float64 `json:"fps"`
}

// ParseMessage decodes and validates a page message.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch m.Type {
	case TypeUpdateSettings:
		if m.Payload == nil {
			m.Payload = &config.Patch{}
		}
	case TypeGetFPS:
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
	}
	return m, nil
}
