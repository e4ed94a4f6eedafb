// Package checksum fingerprints transcript files for incremental import and
// stored rows for incremental snapshot saves.
package checksum

import (
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// Sum returns the hex-encoded BLAKE3-256 digest of data.
func Sum(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fields returns the hex-encoded BLAKE3-256 digest of an ordered list of
// values. Each value is length-prefixed, so ("ab", "c") and ("a", "bc")
// differ.
func Fields(values ...string) string {
	h := blake3.New()
	var prefix []byte
	for _, v := range values {
		prefix = strconv.AppendInt(prefix[:0], int64(len(v)), 10)
		prefix = append(prefix, ':')
		_, _ = h.Write(prefix)
		_, _ = h.WriteString(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
