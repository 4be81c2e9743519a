package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecision(t *testing.T) {
	visible := DecisionsTotal.WithLabelValues("hot", "heading", "visible")
	suppressed := DecisionsTotal.WithLabelValues("hot", "heading", "suppressed")
	beforeVisible := testutil.ToFloat64(visible)
	beforeSuppressed := testutil.ToFloat64(suppressed)

	RecordDecision("hot", "heading", true)
	RecordDecision("hot", "heading", false)
	RecordDecision("hot", "heading", false)

	assert.Equal(t, beforeVisible+1, testutil.ToFloat64(visible))
	assert.Equal(t, beforeSuppressed+2, testutil.ToFloat64(suppressed))
}

func TestRecordScan(t *testing.T) {
	before := testutil.ToFloat64(ScansTotal.WithLabelValues("manual"))
	RecordScan("manual", 0.25)
	assert.Equal(t, before+1, testutil.ToFloat64(ScansTotal.WithLabelValues("manual")))
}

func TestRecordPageWritten(t *testing.T) {
	before := testutil.ToFloat64(PagesWrittenTotal)
	RecordPageWritten()
	assert.Equal(t, before+1, testutil.ToFloat64(PagesWrittenTotal))
}

func TestRecordMetadataFallback(t *testing.T) {
	c := MetadataFallbackTotal.WithLabelValues("last_updated")
	before := testutil.ToFloat64(c)
	RecordMetadataFallback("last_updated")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
