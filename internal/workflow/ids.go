package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns a sortable, collision-safe request identifier:
// req_<yyyymmdd_hhmmss>_<uuid8>. The timestamp prefix keeps working
// directories and logs chronologically browsable.
func NewRequestID(now time.Time) string {
	return fmt.Sprintf("req_%s_%s",
		now.UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
}
