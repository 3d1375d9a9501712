package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMalformedHookCounts(t *testing.T) {
	r := New()
	hook := r.MalformedHook()
	hook("a", "/tmp/a.jsonl", 3, errors.New("bad"))
	hook("a", "/tmp/a.jsonl", 4, errors.New("bad"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.LedgerMalformed.WithLabelValues("a")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.LedgerMalformed.WithLabelValues("b")))
}

func TestRegistryGathers(t *testing.T) {
	r := New()
	r.Cycles.WithLabelValues("a", "traded").Inc()

	n, err := testutil.GatherAndCount(r.Gatherer(), "trader_cycles_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
