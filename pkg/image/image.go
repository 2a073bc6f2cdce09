// Package image packs Modl bytecode into a self-describing file.
//
// An image is the 4-byte magic "MODL" followed by a canonical CBOR map
// holding the format version, an instance id, an optional program name,
// the VM bounds the program was built for, the bytecode and its SHA-256.
// Canonical encoding makes the bytes of an image a function of its fields.
package image

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Magic identifies an image file.
var Magic = [4]byte{'M', 'O', 'D', 'L'}

// Version is the image format version written by Marshal.
const Version uint32 = 1

var (
	ErrBadMagic     = errors.New("image: bad magic")
	ErrVersion      = errors.New("image: unsupported version")
	ErrHashMismatch = errors.New("image: code hash mismatch")
	ErrEmpty        = errors.New("image: no code")
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Limits records the VM bounds a program expects. Zero means the VM default.
type Limits struct {
	StackSize     int `cbor:"1,keyasint,omitempty"`
	CallStackSize int `cbor:"2,keyasint,omitempty"`
}

// Image is a packed program.
type Image struct {
	Version uint32    `cbor:"1,keyasint"`
	ID      uuid.UUID `cbor:"2,keyasint"`
	Name    string    `cbor:"3,keyasint,omitempty"`
	Limits  Limits    `cbor:"4,keyasint"`
	Code    []byte    `cbor:"5,keyasint"`
	Hash    [32]byte  `cbor:"6,keyasint"`
}

// New creates an image for code with a fresh id.
func New(name string, code []byte, limits Limits) *Image {
	return &Image{
		Version: Version,
		ID:      uuid.New(),
		Name:    name,
		Limits:  limits,
		Code:    code,
		Hash:    sha256.Sum256(code),
	}
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, Magic[:])
}

// Marshal encodes img. The hash is recomputed from the code.
func Marshal(img *Image) ([]byte, error) {
	if len(img.Code) == 0 {
		return nil, ErrEmpty
	}
	out := *img
	out.Version = Version
	out.Hash = sha256.Sum256(img.Code)

	body, err := encMode.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	return append(Magic[:len(Magic):len(Magic)], body...), nil
}

// Unmarshal decodes an image and verifies its version and code hash.
func Unmarshal(data []byte) (*Image, error) {
	if !IsImage(data) {
		return nil, ErrBadMagic
	}
	var img Image
	if err := cbor.Unmarshal(data[len(Magic):], &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, img.Version)
	}
	if len(img.Code) == 0 {
		return nil, ErrEmpty
	}
	if sha256.Sum256(img.Code) != img.Hash {
		return nil, ErrHashMismatch
	}
	return &img, nil
}

// WriteFile marshals img to path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads and verifies the image at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
