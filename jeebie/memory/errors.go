package memory

import "fmt"

// InvalidStateBuffer is returned by a Deserialize function when the input
// is shorter than the fixed-size record it expects, or fails a magic/version
// check. Deserialization never partially restores a target on this error.
type InvalidStateBuffer struct {
	Expected int
	Got      int
}

func (e *InvalidStateBuffer) Error() string {
	return fmt.Sprintf("invalid state buffer: expected %d bytes, got %d", e.Expected, e.Got)
}

// MissingRom is returned by MMU deserialization when no ROM was supplied,
// since ROM contents are never part of the serialized snapshot.
type MissingRom struct{}

func (e *MissingRom) Error() string {
	return "missing ROM: deserialize requires a ROM to be reprovided"
}
