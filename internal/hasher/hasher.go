package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to the given length. For content-addressed output
// descriptors we use 16 hex chars (64 bits), which is collision-safe
// for practical asset counts.
func ContentHash(data []byte, hexLen int) string {
	return truncate(hexSum(xxhash.Sum64(data)), hexLen)
}

// ContentHashReader computes xxHash64 from a reader, streaming.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncate(hexSum(h.Sum64()), hexLen), nil
}

// HashFile streams the file at path through xxHash64 and returns the
// full 16-hex-char digest. This is the source content identity used by
// the cache fingerprint.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ContentHashReader(f, 0)
}

func hexSum(v uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return hex.EncodeToString(b[:])
}

func truncate(s string, hexLen int) string {
	if hexLen > 0 && hexLen < len(s) {
		return s[:hexLen]
	}
	return s
}
