package protocol

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeStream(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	lines := []*Line{
		{Type: TypeStatus, Code: ResultOK, Bundle: map[string]string{KeyDismissedApp: "Chrome"}, At: at},
		{Type: TypeStatus, Code: ResultOK, Bundle: map[string]string{KeyDismissedApp: "Maps"}, At: at},
		{Type: TypeResult, Code: ResultOK, At: at},
	}
	for _, l := range lines {
		if err := EncodeLine(&buf, l); err != nil {
			t.Fatalf("EncodeLine: %v", err)
		}
	}

	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", n, buf.String())
	}

	got, err := DecodeStream(&buf)
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 decoded lines, got %d", len(got))
	}
	if got[0].Bundle[KeyDismissedApp] != "Chrome" || got[1].Bundle[KeyDismissedApp] != "Maps" {
		t.Errorf("unexpected order: %+v %+v", got[0], got[1])
	}
	if !got[2].OK() {
		t.Errorf("expected terminal OK result, got %+v", got[2])
	}
}

func TestDecodeStreamWithoutResult(t *testing.T) {
	in := `{"type":"status","code":-1,"bundle":{"dismissed-app":"Chrome"}}` + "\n"
	got, err := DecodeStream(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected error for stream without result line")
	}
	if len(got) != 1 {
		t.Errorf("expected the status line to be returned, got %d", len(got))
	}
}

func TestDecodeStreamStopsAtResult(t *testing.T) {
	in := strings.Join([]string{
		`{"type":"result","code":0,"bundle":{"error-kind":"unrecognized_application","app":"Bogus"}}`,
		`{"type":"status","code":-1,"bundle":{"dismissed-app":"late"}}`,
	}, "\n")
	got, err := DecodeStream(strings.NewReader(in))
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if len(got) != 1 || got[0].OK() {
		t.Fatalf("expected single failing result, got %+v", got)
	}
	if got[0].Bundle[KeyApp] != "Bogus" {
		t.Errorf("expected app Bogus, got %q", got[0].Bundle[KeyApp])
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing type", `{"code":-1}`},
		{"unknown type", `{"type":"progress"}`},
		{"status without app", `{"type":"status","code":-1,"bundle":{}}`},
		{"bad result code", `{"type":"result","code":7}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeLine([]byte(tt.raw)); err == nil {
				t.Fatalf("expected error for %s", tt.raw)
			}
		})
	}

	if err := EncodeLine(&bytes.Buffer{}, &Line{Type: TypeStatus}); err == nil {
		t.Fatal("expected encode to reject status line without app")
	}
}
