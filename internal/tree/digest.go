package tree

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Digest computes a blake3 hash over every file path and content in t.
// Empty directories do not contribute.
func Digest(t Tree) string {
	hasher := blake3.New()
	var size [8]byte
	_ = Walk(t, func(path []string, content []byte) error {
		p := strings.Join(path, "/")
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write([]byte(p))
		binary.BigEndian.PutUint64(size[:], uint64(len(content)))
		_, _ = hasher.Write(size[:])
		_, _ = hasher.Write(content)
		return nil
	})
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// DigestBytes computes the blake3 hash of a single piece of content.
func DigestBytes(content []byte) string {
	sum := blake3.Sum256(content)
	return fmt.Sprintf("%x", sum[:])
}
