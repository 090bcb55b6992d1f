package domain

// Side identifies which face of the card an image shows.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// CapturedImage is a selected image held in memory until it is uploaded.
// Preview is a data URI suitable for an <img src>.
type CapturedImage struct {
	Data     []byte
	MimeType string
	Filename string
	Preview  string
}

// Asset is an image hosted by an asset store.
type Asset struct {
	URL      string
	PublicID string
}
