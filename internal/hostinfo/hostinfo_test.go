package hostinfo

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestCollect(t *testing.T) {
	info := Collect(context.Background())
	if info.LogicalCores < 1 {
		t.Errorf("LogicalCores = %d, want at least 1", info.LogicalCores)
	}
	if info.MemAvailable > info.MemTotal {
		t.Errorf("MemAvailable %d exceeds MemTotal %d", info.MemAvailable, info.MemTotal)
	}
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Info("host", "host", Info{LogicalCores: 8, CPUModel: "test cpu", MemTotal: 2 << 30, MemAvailable: 1 << 30})

	out := buf.String()
	for _, want := range []string{"host.logical_cores=8", `host.cpu_model="test cpu"`, "host.mem_total_mb=2048", "host.mem_available_mb=1024"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "physical_cores") {
		t.Errorf("output %q includes unknown physical_cores", out)
	}
}
