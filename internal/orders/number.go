package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber builds a human-readable order number: prefix, creation time in
// milliseconds, and eight hex characters of a random UUID. The store's
// unique index is the final guard; CreateOrder retries on a duplicate.
func NewNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ToUpper(id[:8]))
}
