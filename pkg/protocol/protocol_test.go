package protocol_test

import (
	"strings"
	"testing"

	"github.com/NicolasHaas/klaxon/pkg/protocol"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	want := protocol.Alert{Text: "Fire drill", Color: "red", Username: "johndoe"}

	raw, err := protocol.Encode(protocol.EventReceiveAlert, want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	frame, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Event != protocol.EventReceiveAlert {
		t.Errorf("Event = %q, want %q", frame.Event, protocol.EventReceiveAlert)
	}

	var got protocol.Alert
	if err := frame.Payload(&got); err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	tcases := map[string]string{
		"not_json":  "{",
		"no_event":  `{"data":{"token":"x"}}`,
		"oversized": `{"event":"validate","data":"` + strings.Repeat("a", protocol.MaxFrameSize) + `"}`,
	}

	for name, raw := range tcases {
		t.Run(name, func(t *testing.T) {
			if _, err := protocol.Decode([]byte(raw)); err == nil {
				t.Fatalf("Decode(%q...): expected error, got nil", raw[:min(len(raw), 40)])
			}
		})
	}
}

func TestEncodeNoPayload(t *testing.T) {
	t.Parallel()

	raw, err := protocol.Encode(protocol.EventReauthenticate, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Event != protocol.EventReauthenticate {
		t.Errorf("Event = %q, want %q", frame.Event, protocol.EventReauthenticate)
	}
	if len(frame.Data) != 0 {
		t.Errorf("Data = %q, want empty", frame.Data)
	}
}
