package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngest(t *testing.T) {
	beforeText := testutil.ToFloat64(IngestedDocumentsTotal.WithLabelValues("text"))
	beforeOK := testutil.ToFloat64(IngestBatchesTotal.WithLabelValues("success"))

	ObserveIngest("success", 3, 3, 2*time.Second)

	if got := testutil.ToFloat64(IngestedDocumentsTotal.WithLabelValues("text")) - beforeText; got != 3 {
		t.Errorf("text documents delta=%v, want 3", got)
	}
	if got := testutil.ToFloat64(IngestBatchesTotal.WithLabelValues("success")) - beforeOK; got != 1 {
		t.Errorf("success batches delta=%v, want 1", got)
	}
}
