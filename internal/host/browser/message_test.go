package browser

import (
	"errors"
	"testing"
)

func TestParseMessage(t *testing.T) {
	m, err := ParseMessage([]byte(`{"type":"UPDATE_SETTINGS","payload":{"blur":12,"ambientMode":true}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if m.Payload == nil || *m.Payload.Blur != 12 || !*m.Payload.AmbientMode {
		t.Fatalf("payload=%+v", m.Payload)
	}
	if m.Payload.Opacity != nil {
		t.Fatalf("absent field decoded")
	}

	m, err = ParseMessage([]byte(`{"type":"UPDATE_SETTINGS"}`))
	if err != nil || m.Payload == nil {
		t.Fatalf("empty update: %+v %v", m, err)
	}

	if _, err := ParseMessage([]byte(`{"type":"GET_FPS"}`)); err != nil {
		t.Fatalf("get fps: %v", err)
	}
	if _, err := ParseMessage([]byte(`{"type":"NOPE"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("unknown: %v", err)
	}
	if _, err := ParseMessage([]byte(`{`)); err == nil {
		t.Fatalf("bad json accepted")
	}
}
