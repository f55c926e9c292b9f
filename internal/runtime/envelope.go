package runtime

import (
	"fmt"
	"time"
)

// FormatEnvelope wraps an inbound message body with channel and sender
// attribution. When the previous inbound timestamp for the session is known,
// the elapsed gap is rendered so the agent sees conversation pacing.
func FormatEnvelope(channel, sender, text string, prevMs, nowMs int64) string {
	head := fmt.Sprintf("[%s] %s", channel, sender)
	if prevMs > 0 && nowMs > prevMs {
		gap := time.Duration(nowMs-prevMs) * time.Millisecond
		head += fmt.Sprintf(" (+%s)", gap.Truncate(time.Second))
	}
	return head + ": " + text
}
