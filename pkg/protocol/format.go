package protocol

import (
	"fmt"
	"strings"
)

// TransferFormat describes how payloads are exchanged. Values are bit flags
// so a set of formats can be expressed as their union.
type TransferFormat uint8

const (
	// Text payloads are UTF-8 strings.
	Text TransferFormat = 1 << iota
	// Binary payloads are arbitrary bytes.
	Binary
)

// AllFormats is the union of every transfer format.
const AllFormats = Text | Binary

// String returns the wire name of a single format, or a "|" joined list for a set.
func (f TransferFormat) String() string {
	switch f {
	case Text:
		return "Text"
	case Binary:
		return "Binary"
	case 0:
		return "None"
	}
	var names []string
	for _, one := range []TransferFormat{Text, Binary} {
		if f&one != 0 {
			names = append(names, one.String())
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("TransferFormat(%d)", uint8(f))
	}
	return strings.Join(names, "|")
}

// Has reports whether every format in other is part of f.
func (f TransferFormat) Has(other TransferFormat) bool {
	return other != 0 && f&other == other
}

// Valid reports whether f names exactly one known format.
func (f TransferFormat) Valid() bool {
	return f == Text || f == Binary
}

// ParseTransferFormat maps a wire name (case-insensitive) to its format.
func ParseTransferFormat(name string) (TransferFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text":
		return Text, nil
	case "binary":
		return Binary, nil
	default:
		return 0, fmt.Errorf("unknown transfer format %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler
func (f TransferFormat) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("cannot marshal transfer format %s", f)
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (f *TransferFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseTransferFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
