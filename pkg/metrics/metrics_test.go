package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHelpersCount(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.InvoiceCreated()
	m.InvoiceCanceled("creditnote")
	m.InvoiceCanceled("creditnote")
	m.InvoiceCanceled("reissue")
	m.ChainIntegrityFailed()
	m.FileCleanupFailed(3)
	m.FileImportPurged()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvoicesCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InvoicesCanceled.WithLabelValues("creditnote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvoicesCanceled.WithLabelValues("reissue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChainIntegrityFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FileCleanupFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileImportsPurged))
}

func TestHelpersOnNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InvoiceCreated()
		m.InvoiceCanceled("reissue")
		m.ChainIntegrityFailed()
		m.FileCleanupFailed(1)
		m.FileImportPurged()
	})
}

func TestRegistersWithGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("osteo", reg)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)

	// a second set on the same registry collides
	assert.Panics(t, func() { NewMetrics("osteo", reg) })
}
