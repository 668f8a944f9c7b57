package metrics

import (
	"errors"
	"testing"

	"github.com/yeisme/pubvault/pkg/configs"
)

// counterValue 从注册表读取带指定标签的计数器值.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}

	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}

			return m.GetCounter().GetValue()
		}
	}

	return 0
}

func TestInitMetricsAndObserveOp(t *testing.T) {
	cfg := configs.MetricsConfig{Enabled: true}

	if err := InitMetrics(cfg); err != nil {
		t.Fatal(err)
	}

	// 第二次不应因重复注册而 panic
	if err := InitMetrics(cfg); err != nil {
		t.Fatal(err)
	}

	labels := map[string]string{"operation": OpDelete, "result": ResultError}
	before := counterValue(t, "pubvault_publication_operations_total", labels)

	ObserveOp(OpDelete, errors.New("boom"))
	ObserveOp(OpDelete, nil)

	after := counterValue(t, "pubvault_publication_operations_total", labels)
	if after-before != 1 {
		t.Fatalf("error counter delta = %v, want 1", after-before)
	}
}

func TestResult(t *testing.T) {
	if Result(nil) != ResultOK || Result(errors.New("x")) != ResultError {
		t.Fatal("unexpected result labels")
	}
}
