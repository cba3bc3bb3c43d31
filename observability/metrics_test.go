package observability

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"stakevault/core/events"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("stake", "withdraw", 425, 5*time.Millisecond)
	m.Observe("stake", "withdraw", 200, time.Millisecond)
	m.RecordRejection("stake", "NothingClaimable")

	if got := testutil.ToFloat64(m.errors.WithLabelValues("stake", "withdraw", "425")); got < 1 {
		t.Fatalf("expected error counter to increase, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("stake", "withdraw", "success")); got < 1 {
		t.Fatalf("expected success counter to increase, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues("stake", "NothingClaimable")); got < 1 {
		t.Fatalf("expected rejection counter to increase, got %v", got)
	}
}

func TestLedgerGauges(t *testing.T) {
	l := Ledger()
	l.SetPool("fees", big.NewInt(150))
	l.SetStakeCount(3)
	l.SetCurrentEpoch(7)
	if got := testutil.ToFloat64(l.pools.WithLabelValues("fees")); got != 150 {
		t.Fatalf("unexpected pool gauge %v", got)
	}
	if got := testutil.ToFloat64(l.currentEpoch); got != 7 {
		t.Fatalf("unexpected epoch gauge %v", got)
	}
}

func TestEventCounterForwards(t *testing.T) {
	recorder := &events.Recorder{}
	counter := EventCounter{Next: recorder}
	before := testutil.ToFloat64(Events().emitted.WithLabelValues(events.TypeRewardEpochAdvanced))
	counter.Emit(events.RewardEpochAdvanced{Old: 1, New: 2})
	if len(recorder.Events()) != 1 {
		t.Fatalf("expected event to be forwarded")
	}
	after := testutil.ToFloat64(Events().emitted.WithLabelValues(events.TypeRewardEpochAdvanced))
	if after != before+1 {
		t.Fatalf("expected counter to increase by one, got %v -> %v", before, after)
	}
}
