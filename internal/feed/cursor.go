package feed

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
)

// NewCursor returns a random decimal pagination token. The upstream accepts
// any numeric cursor and does not require monotonic values.
func NewCursor() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8]) &^ (1 << 63)
	return strconv.FormatUint(n, 10)
}
