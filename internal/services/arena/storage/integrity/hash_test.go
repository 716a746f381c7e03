package integrity

import (
	"testing"
	"time"
)

func TestRecordHashIgnoresPayloadKeyOrder(t *testing.T) {
	stamp := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a, err := RecordHash(Envelope{MatchID: "m1", Type: "phase.move", Timestamp: stamp, Payload: []byte(`{"a":"1","b":"2"}`)})
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := RecordHash(Envelope{MatchID: "m1", Type: "phase.move", Timestamp: stamp, Payload: []byte(`{"b":"2", "a":"1"}`)})
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal hashes, got %s and %s", a, b)
	}
}

func TestRecordHashCoversEveryField(t *testing.T) {
	stamp := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	base := Envelope{MatchID: "m1", Type: "phase.move", Timestamp: stamp, Payload: []byte(`{"a":"1"}`)}
	want, err := RecordHash(base)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	variants := map[string]Envelope{
		"match":     {MatchID: "m2", Type: base.Type, Timestamp: stamp, Payload: base.Payload},
		"type":      {MatchID: "m1", Type: "phase.melee_attack", Timestamp: stamp, Payload: base.Payload},
		"timestamp": {MatchID: "m1", Type: base.Type, Timestamp: stamp.Add(time.Millisecond), Payload: base.Payload},
		"payload":   {MatchID: "m1", Type: base.Type, Timestamp: stamp, Payload: []byte(`{"a":"2"}`)},
	}
	for name, e := range variants {
		got, err := RecordHash(e)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got == want {
			t.Fatalf("expected %s to change the hash", name)
		}
	}
}

func TestRecordHashRejectsInvalidPayload(t *testing.T) {
	if _, err := RecordHash(Envelope{MatchID: "m1", Type: "x", Payload: []byte(`{`)}); err == nil {
		t.Fatal("expected error")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	first, err := ChainHash("m1", 1, "h1", "")
	if err != nil {
		t.Fatalf("chain 1: %v", err)
	}
	second, err := ChainHash("m1", 2, "h2", first)
	if err != nil {
		t.Fatalf("chain 2: %v", err)
	}
	forked, err := ChainHash("m1", 2, "h2", "other")
	if err != nil {
		t.Fatalf("chain fork: %v", err)
	}
	if second == forked {
		t.Fatal("expected predecessor to change the chain hash")
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}
