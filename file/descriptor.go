package file

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"strings"

	"github.com/chanderlud/audio-chat/limits"
	"github.com/sirupsen/logrus"
)

// MaxFileNameLength is the maximum allowed file name length in bytes.
const MaxFileNameLength = 255

// SignatureSize is the size of a SHA-256 digest.
const SignatureSize = sha256.Size

const descriptorFields = 5

// Descriptor describes a file offered for transfer. It is immutable once built.
type Descriptor struct {
	Extension string
	Name      string
	Length    uint64
	ChunkSize uint64
	Signature [SignatureSize]byte
}

// FromFile describes the file at path, hashing its full contents.
func FromFile(path string, chunkSize uint64) (Descriptor, error) {
	if err := limits.ValidateChunkSize(chunkSize); err != nil {
		return Descriptor{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Descriptor{}, err
	}
	if info.IsDir() {
		return Descriptor{}, fmt.Errorf("%s is a directory", path)
	}

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	name, ext := splitName(filepath.Base(path))
	d := Descriptor{
		Extension: ext,
		Name:      name,
		Length:    uint64(n),
		ChunkSize: chunkSize,
	}
	copy(d.Signature[:], h.Sum(nil))

	logrus.WithFields(logrus.Fields{
		"function":   "FromFile",
		"file_name":  d.FormattedName(),
		"file_size":  d.Length,
		"chunk_size": d.ChunkSize,
	}).Debug("Built transfer descriptor")

	return d, nil
}

// splitName splits "report.tar.gz" into "report.tar" and "gz".
func splitName(base string) (string, string) {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), strings.TrimPrefix(ext, ".")
}

// FormattedName joins name and extension.
func (d Descriptor) FormattedName() string {
	if d.Extension == "" {
		return d.Name
	}
	return d.Name + "." + d.Extension
}

// Chunks returns how many file chunk frames the transfer takes.
func (d Descriptor) Chunks() uint64 {
	if d.ChunkSize == 0 {
		return 0
	}
	return (d.Length + d.ChunkSize - 1) / d.ChunkSize
}

// Equal reports field-wise equality.
func (d Descriptor) Equal(other Descriptor) bool {
	return d == other
}

// Pack encodes the descriptor as five length-prefixed fields: extension, name,
// length, chunk size and signature. Integers use their minimal big-endian width.
func (d Descriptor) Pack() []byte {
	fields := [descriptorFields][]byte{
		[]byte(d.Extension),
		[]byte(d.Name),
		minimalBigEndian(d.Length),
		minimalBigEndian(d.ChunkSize),
		d.Signature[:],
	}

	var buf bytes.Buffer
	for _, field := range fields {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], uint32(len(field)))
		buf.Write(prefix[:])
		buf.Write(field)
	}
	return buf.Bytes()
}

func minimalBigEndian(v uint64) []byte {
	width := (bits.Len64(v) + 7) / 8
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], v)
	return append([]byte(nil), full[8-width:]...)
}

func parseBigEndian(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: integer field is %d bytes", ErrMalformedHandshake, len(b))
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// FromHandshake decodes a packed descriptor.
func FromHandshake(data []byte) (Descriptor, error) {
	var fields [descriptorFields][]byte
	offset := 0

	for i := range fields {
		if len(data)-offset < 4 {
			return Descriptor{}, fmt.Errorf("%w: missing length of field %d", ErrMalformedHandshake, i)
		}
		length := int(binary.BigEndian.Uint32(data[offset:]))
		offset += 4
		if length > len(data)-offset {
			return Descriptor{}, fmt.Errorf("%w: field %d declares %d bytes, %d remain", ErrMalformedHandshake, i, length, len(data)-offset)
		}
		fields[i] = data[offset : offset+length]
		offset += length
	}

	length, err := parseBigEndian(fields[2])
	if err != nil {
		return Descriptor{}, err
	}
	chunkSize, err := parseBigEndian(fields[3])
	if err != nil {
		return Descriptor{}, err
	}
	if len(fields[4]) != SignatureSize {
		return Descriptor{}, fmt.Errorf("%w: signature is %d bytes", ErrMalformedHandshake, len(fields[4]))
	}
	if len(fields[0])+len(fields[1])+1 > MaxFileNameLength {
		return Descriptor{}, fmt.Errorf("%w: %w", ErrMalformedHandshake, ErrFileNameTooLong)
	}

	d := Descriptor{
		Extension: string(fields[0]),
		Name:      string(fields[1]),
		Length:    length,
		ChunkSize: chunkSize,
	}
	copy(d.Signature[:], fields[4])
	return d, nil
}
