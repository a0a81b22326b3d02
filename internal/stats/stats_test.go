package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdater_Register(t *testing.T) {
	mux := http.NewServeMux()
	u := NewUpdater()
	u.Register(mux)

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler)
	assert.Equal(t, "GET /debug/vars", pattern)
}

func TestUpdater_IncrDecr(t *testing.T) {
	u := NewUpdater()
	u.Run()
	defer u.Stop()

	u.Incr(WSClients)
	u.Incr(WSClients)
	u.Decr(WSClients)
	u.Incr("custom")

	assert.Eventually(t, func() bool {
		return u.Value(WSClients) == 1 && u.Value("custom") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestUpdater_Handler(t *testing.T) {
	u := NewUpdater()
	u.Run()
	defer u.Stop()

	u.Incr(PartiesLive)
	require.Eventually(t, func() bool { return u.Value(PartiesLive) == 1 }, time.Second, 10*time.Millisecond)

	rr := httptest.NewRecorder()
	u.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body[PartiesLive])
	assert.Contains(t, body, "uptime_ms")
	assert.Equal(t, float64(0), body[EventsDropped])
}

func TestUpdater_StopDiscards(t *testing.T) {
	u := NewUpdater()
	u.Run()
	u.Stop()
	u.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			u.Incr(EventsSent)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Incr blocked after Stop")
	}
}

func TestMockRecorder(t *testing.T) {
	m := new(MockRecorder)
	m.On("Incr", SignalsRelayed).Once()

	var r Recorder = m
	r.Incr(SignalsRelayed)

	m.AssertExpectations(t)
}
