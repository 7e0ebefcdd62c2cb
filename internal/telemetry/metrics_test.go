package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := MessagesReceived
	Init()
	assert.Same(t, first, MessagesReceived)
}

func TestCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(CommandsHandled.WithLabelValues("ping"))
	IncCommand("ping")
	IncCommand("ping")
	assert.Equal(t, before+2, testutil.ToFloat64(CommandsHandled.WithLabelValues("ping")))

	before = testutil.ToFloat64(Disconnects)
	IncDisconnects()
	assert.Equal(t, before+1, testutil.ToFloat64(Disconnects))
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	IncReplies()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handbot_replies_sent_total")
}
