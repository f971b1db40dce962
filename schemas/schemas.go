package schemas

import "encoding/json"

const (
	StrokeURL string = "https://schema.inklet.dev/stroke.json"
	CutURL    string = "https://schema.inklet.dev/cut.json"
)

// Cut is the only structured payload the core ever inspects: a stroke-shaped
// record that supersedes a set of earlier strokes.
type Cut struct {
	OriginalStrokeIds []string `json:"originalStrokeIds"`
}

// ExtractCut reports whether an opaque stroke payload carries a cut record.
func ExtractCut(payload []byte) (Cut, bool) {
	if len(payload) == 0 {
		return Cut{}, false
	}
	var cut Cut
	if err := json.Unmarshal(payload, &cut); err != nil {
		return Cut{}, false
	}
	return cut, len(cut.OriginalStrokeIds) > 0
}
