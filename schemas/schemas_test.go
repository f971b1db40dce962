package schemas

import "testing"

func TestExtractCut(t *testing.T) {
	cut, ok := ExtractCut([]byte(`{"originalStrokeIds":["1","2"]}`))
	if !ok {
		t.Fatal("expected a cut record")
	}
	if len(cut.OriginalStrokeIds) != 2 {
		t.Fatalf("expected 2 originals, got %v", cut.OriginalStrokeIds)
	}
}

func TestExtractCutIgnoresPlainStrokes(t *testing.T) {
	for _, payload := range []string{
		``,
		`{}`,
		`{"points":[[0,0],[1,1]]}`,
		`{"originalStrokeIds":[]}`,
		`not json`,
	} {
		if _, ok := ExtractCut([]byte(payload)); ok {
			t.Fatalf("payload %q must not parse as a cut", payload)
		}
	}
}
