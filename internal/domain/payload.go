package domain

// PayloadKind tags the broadcast content variant
type PayloadKind string

const (
	PayloadText      PayloadKind = "text"
	PayloadPhoto     PayloadKind = "photo"
	PayloadAnimation PayloadKind = "animation"
)

// Payload is the content of a broadcast. Text is used by PayloadText;
// FileID and Caption by the media variants.
type Payload struct {
	Kind    PayloadKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	FileID  string      `json:"file_id,omitempty"`
	Caption string      `json:"caption,omitempty"`
}

// Valid reports whether the payload carries what its kind needs
func (p Payload) Valid() bool {
	switch p.Kind {
	case PayloadText:
		return p.Text != ""
	case PayloadPhoto, PayloadAnimation:
		return p.FileID != ""
	default:
		return false
	}
}
