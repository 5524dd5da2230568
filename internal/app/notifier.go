package app

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vk/pipegrid/internal/engine"
)

// logNotifier surfaces the engine's live status events through the
// application logger and relays raw output chunks to the output writer,
// tagged by step name so interleaved parallel output stays attributable.
type logNotifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	outW io.Writer
}

func (n *logNotifier) StepStatus(name string, status engine.Status) {
	switch status {
	case engine.StatusRunning:
		n.logger.Info("▶️ Starting step", "step", name)
	case engine.StatusCompleted:
		n.logger.Info("✅ Finished step", "step", name)
	case engine.StatusFailed:
		n.logger.Error("Step failed", "step", name)
	case engine.StatusCancelled:
		n.logger.Warn("Step cancelled", "step", name)
	case engine.StatusSkipped:
		n.logger.Warn("Skipping step due to upstream failure", "step", name)
	}
}

func (n *logNotifier) StepOutput(name string, chunk []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.outW, "[%s] %s", name, chunk)
}
