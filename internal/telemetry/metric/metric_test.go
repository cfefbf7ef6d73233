package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCommand(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommand("open", true, 10*time.Millisecond)
	r.ObserveCommand("open", false, time.Millisecond)
	r.ObserveCommand("open", true, time.Millisecond)

	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues("open", ResultOK)); got != 2 {
		t.Errorf("commands_total{open,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.CommandsTotal.WithLabelValues("open", ResultError)); got != 1 {
		t.Errorf("commands_total{open,error} = %v, want 1", got)
	}
}

func TestObserveGC(t *testing.T) {
	r := NewRegistry()
	r.ObserveGC(3, 2, 1)
	r.ObserveGC(1, 0, 0)

	if got := testutil.ToFloat64(r.GCRuns); got != 2 {
		t.Errorf("gc_runs_total = %v, want 2", got)
	}
	tests := []struct {
		kind string
		want float64
	}{
		{KindStorage, 4},
		{KindApp, 2},
		{KindRepository, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(r.GCEvictions.WithLabelValues(tt.kind)); got != tt.want {
			t.Errorf("gc_evictions_total{%s} = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestRegisterEntities(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterEntities(func() map[string]int {
		return map[string]int{KindRepository: 1, KindApp: 2, KindStorage: 5}
	})
	if err != nil {
		t.Fatalf("RegisterEntities() error = %v", err)
	}

	expected := `
# HELP thingvault_entities Session entities held in memory, by kind
# TYPE thingvault_entities gauge
thingvault_entities{kind="app"} 2
thingvault_entities{kind="repository"} 1
thingvault_entities{kind="storage"} 5
`
	if err := testutil.GatherAndCompare(r.Gatherer(), strings.NewReader(expected), "thingvault_entities"); err != nil {
		t.Error(err)
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveCommand("store", true, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `thingvault_commands_total{command="store",result="ok"} 1`) {
		t.Errorf("metrics output lacks command counter:\n%s", body)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	r.ObserveCommand("open", true, time.Millisecond)
	r.ObserveGC(1, 1, 1)
	if err := r.RegisterEntities(nil); err != nil {
		t.Errorf("RegisterEntities() on nil = %v", err)
	}
	if r.Handler() == nil {
		t.Error("Handler() on nil registry returned nil")
	}
}
