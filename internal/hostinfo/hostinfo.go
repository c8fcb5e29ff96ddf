// Package hostinfo describes the machine a search runs on.
package hostinfo

import (
	"context"
	"log/slog"
	"runtime"

	gcpu "github.com/shirou/gopsutil/v4/cpu"
	gmem "github.com/shirou/gopsutil/v4/mem"
)

// Info holds the host facts logged at startup.
// Fields gopsutil cannot read are left zero.
type Info struct {
	CPUModel      string
	CPUMhz        float64
	PhysicalCores int
	LogicalCores  int
	MemTotal      uint64 // bytes
	MemAvailable  uint64 // bytes
}

// Collect gathers host information. It never fails; LogicalCores falls back
// to runtime.NumCPU.
func Collect(ctx context.Context) Info {
	var info Info

	if cpus, err := gcpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		info.CPUMhz = cpus[0].Mhz
	}
	if n, err := gcpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = n
	}
	if n, err := gcpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.LogicalCores = n
	} else {
		info.LogicalCores = runtime.NumCPU()
	}

	if vm, err := gmem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemTotal = vm.Total
		info.MemAvailable = vm.Available
	}

	return info
}

// LogValue implements slog.LogValuer.
func (i Info) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("logical_cores", i.LogicalCores),
	}
	if i.PhysicalCores > 0 {
		attrs = append(attrs, slog.Int("physical_cores", i.PhysicalCores))
	}
	if i.CPUModel != "" {
		attrs = append(attrs, slog.String("cpu_model", i.CPUModel))
	}
	if i.MemTotal > 0 {
		attrs = append(attrs,
			slog.Uint64("mem_total_mb", i.MemTotal>>20),
			slog.Uint64("mem_available_mb", i.MemAvailable>>20),
		)
	}
	return slog.GroupValue(attrs...)
}
