package inklet

import "testing"

func TestMarkerIDRoundTrip(t *testing.T) {
	id := MarkerID("42")
	if id != "undo-42" {
		t.Fatalf("unexpected marker id %s", id)
	}

	strokeID, ok := StrokeIDFromMarkerID(id)
	if !ok || strokeID != "42" {
		t.Fatalf("expected stroke id 42, got %q ok=%v", strokeID, ok)
	}

	if _, ok := StrokeIDFromMarkerID("marker-42"); ok {
		t.Fatalf("expected foreign prefix to be rejected")
	}
	if _, ok := StrokeIDFromMarkerID("undo-"); ok {
		t.Fatalf("expected empty stroke id to be rejected")
	}
}

func TestGetHashStable(t *testing.T) {
	a := GetHash([]byte("stroke body"))
	b := GetHash([]byte("stroke body"))
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	if a == GetHash([]byte("other body")) {
		t.Fatalf("distinct content should not collide")
	}
	if len(a) != 32 {
		t.Fatalf("unexpected hash length %d", len(a))
	}
}

func TestRecordIDIncludesKind(t *testing.T) {
	body := []byte(`{"undone":true}`)
	if RecordID(RecordKindMarker, body) == RecordID(RecordKindClear, body) {
		t.Fatalf("record ids of different kinds should differ")
	}
}
