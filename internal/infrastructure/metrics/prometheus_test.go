package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"Encyclopedia/internal/domain"
)

func TestCollectorsTrackActivity(t *testing.T) {
	t.Parallel()

	m := NewPrometheus(prometheus.NewRegistry())

	m.VersionAppended()
	m.VersionAppended()
	m.RevisionDecided(domain.RevisionApproved)
	m.RevisionDecided(domain.RevisionRejected)
	m.RevisionDecided(domain.RevisionApproved)
	m.GenerationItem("created")
	m.GenerationItem("failed")
	m.BatchFinished(domain.BatchResult{Requested: 5, Created: 3})

	if got := testutil.ToFloat64(m.versions); got != 2 {
		t.Fatalf("versions = %v", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues(string(domain.RevisionApproved))); got != 2 {
		t.Fatalf("approved = %v", got)
	}
	if got := testutil.ToFloat64(m.generations.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed items = %v", got)
	}
	if got := testutil.ToFloat64(m.lastBatch.WithLabelValues("unmet")); got != 2 {
		t.Fatalf("unmet = %v", got)
	}
}

func TestDoubleRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewPrometheus(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	NewPrometheus(reg)
}
