package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNowMillisMonotonic(t *testing.T) {
	a := nowMillis()
	time.Sleep(5 * time.Millisecond)
	b := nowMillis()
	assert.Greater(t, b, a)
}

func TestRolloverThreshold(t *testing.T) {
	assert.Equal(t, int64(3600000), int64(rolloverThresholdMillis))
}
