package assets

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/zeebo/xxh3"
)

// Hash returns the content hash used for asset addressing.
func Hash(data []byte) uint64 {
	return xxh3.Hash(data)
}

// EncodeHash renders a hash as the base64 segment of a rewritten name.
func EncodeHash(h uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], h)
	return base64.URLEncoding.EncodeToString(b[:])
}

// DecodeHash parses the base64 segment of a rewritten name.
func DecodeHash(s string) (uint64, bool) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil || len(b) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// SplitName splits a file name at its first dot. "app.min.js" yields
// ("app", "min.js"); a name without a dot has an empty extension.
func SplitName(filename string) (stem, ext string) {
	if i := strings.IndexByte(filename, '.'); i >= 0 {
		return filename[:i], filename[i+1:]
	}
	return filename, ""
}

// Name returns the content-addressed name for filename.
func Name(filename string, hash uint64) string {
	stem, ext := SplitName(filename)
	if ext == "" {
		return stem + "." + EncodeHash(hash)
	}
	return stem + "." + EncodeHash(hash) + "." + ext
}

// ParseName extracts the hash from a rewritten name produced by Name.
func ParseName(name string) (uint64, bool) {
	_, rest := SplitName(name)
	if rest == "" {
		return 0, false
	}
	encoded, _ := SplitName(rest)
	return DecodeHash(encoded)
}
