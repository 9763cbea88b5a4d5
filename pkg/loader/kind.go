package loader

// Kind classifies a loaded resource's payload.
type Kind int

const (
	// KindUnspecified lets the loader pick: code for network and
	// inline sources, extension-based for files.
	KindUnspecified Kind = iota

	// KindCode is an executable module.
	KindCode

	// KindData is a structured data payload such as JSON.
	KindData

	// KindBinary is a binary module such as a wasm blob.
	KindBinary
)

// String returns the kind as a short noun for display.
func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindData:
		return "data"
	case KindBinary:
		return "binary"
	default:
		return "unspecified"
	}
}
