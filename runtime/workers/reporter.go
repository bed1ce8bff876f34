package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"secure-chat/contract"

	"github.com/shirou/gopsutil/process"
)

// ReporterWorker logs a periodic snapshot of the relay: live connection
// count plus the process's own CPU and RAM usage.
type ReporterWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, registry: registry, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reporter")
			return nil
		case <-ticker.C:
			w.report(self)
		}
	}
}

func (w *ReporterWorker) report(self *process.Process) {
	cpu, err := self.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	ram, err := self.MemoryPercent()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	w.log.Info("Relay status",
		"connections", w.registry.Count(),
		"cpu_percent", cpu,
		"ram_percent", ram)
}
