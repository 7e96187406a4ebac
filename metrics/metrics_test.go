package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(201))
	assert.Equal(t, "4xx", StatusClass(409))
	assert.Equal(t, "5xx", StatusClass(503))
	assert.Equal(t, "unknown", StatusClass(99))
}

func TestWebhookCounterByOutcome(t *testing.T) {
	before := testutil.ToFloat64(WebhooksProcessedTotal.WithLabelValues("replayed"))
	WebhooksProcessedTotal.WithLabelValues("replayed").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(WebhooksProcessedTotal.WithLabelValues("replayed")))
}
