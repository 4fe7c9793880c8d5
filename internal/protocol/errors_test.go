package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrBadRequest,
		ErrUnknownBlock,
		ErrRateLimit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestNewAck(t *testing.T) {
	ok := NewAck("e1", "", "")
	if !ok.Accepted || ok.Type != TypeAck || ok.ProtocolVersion != Version {
		t.Fatalf("accepted ack=%+v", ok)
	}
	bad := NewAck("e2", ErrRateLimit, "edit queue full")
	if bad.Accepted || bad.Code != ErrRateLimit {
		t.Fatalf("rejected ack=%+v", bad)
	}
}
