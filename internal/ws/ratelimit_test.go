package ws

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestConnectAllowed(t *testing.T) {
	rl := NewIPRateLimiter(clockwork.NewFakeClock(), 2, 5, time.Second)

	assert.True(t, rl.ConnectAllowed("1.1.1.1"))
	assert.True(t, rl.ConnectAllowed("1.1.1.1"))
	assert.False(t, rl.ConnectAllowed("1.1.1.1"))
	assert.True(t, rl.ConnectAllowed("2.2.2.2"), "limits are per IP")

	rl.Disconnect("1.1.1.1")
	assert.True(t, rl.ConnectAllowed("1.1.1.1"))

	rl.Disconnect("9.9.9.9")
}

func TestMessageAllowedRefills(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := NewIPRateLimiter(clock, 1, 3, time.Second)
	rl.ConnectAllowed("1.1.1.1")

	for i := 0; i < 3; i++ {
		assert.True(t, rl.MessageAllowed("1.1.1.1"), "message %d", i)
	}
	assert.False(t, rl.MessageAllowed("1.1.1.1"))

	clock.Advance(500 * time.Millisecond)
	assert.False(t, rl.MessageAllowed("1.1.1.1"), "no refill inside the window")

	clock.Advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.MessageAllowed("1.1.1.1"), "refilled message %d", i)
	}
	assert.False(t, rl.MessageAllowed("1.1.1.1"), "refill is capped at the rate")
}

func TestSweepDropsIdleVisitors(t *testing.T) {
	rl := NewIPRateLimiter(clockwork.NewFakeClock(), 1, 1, time.Second)
	rl.ConnectAllowed("1.1.1.1")
	rl.ConnectAllowed("2.2.2.2")
	rl.Disconnect("2.2.2.2")

	rl.sweep()
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "1.1.1.1")
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", RealIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", RealIP(r))
}
