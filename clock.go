package fiber

import "time"

// nowMillis returns a monotonic millisecond timestamp suitable for timer
// deadline arithmetic. time.Now().UnixMilli() is not monotonic across
// wall-clock adjustments on its own, but Go's runtime already stamps
// time.Now() with a monotonic reading that time arithmetic (Sub) uses
// transparently; clockEpoch anchors every reading to a process-start
// monotonic reference so callers still get plain millisecond integers to
// compare and arithmetic on.
var clockEpoch = time.Now()

func nowMillis() int64 {
	return time.Since(clockEpoch).Milliseconds()
}

// rolloverThresholdMillis is the spec's "moves backward by at least one
// hour" rollover-detection threshold.
const rolloverThresholdMillis = 60 * 60 * 1000
