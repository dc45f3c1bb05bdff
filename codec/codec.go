// Package codec centralizes structured encoding for vecfs records.
//
// Directory entry lists and journal operations are persisted with the
// Default codec. Changing it is a format break: bytes written by one codec
// do not decode with another. Backup manifests name their codec, so they
// may use any codec ByName knows.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Backup manifests are prefixed with the name of the codec that wrote them;
// ReadManifest selects the decoder through ByName.
func ByName(name string) (Codec, bool) {
	switch name {
	case "cbor":
		return CBOR{}, true
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for every on-disk structure.
var Default Codec = CBOR{}
