package events

import (
	"context"
	"log/slog"
	"sync"
)

// RunSources starts every source in its own goroutine, all feeding
// out. A source that fails is logged and the others carry on. The
// returned function waits until all sources have stopped.
func RunSources(ctx context.Context, out chan<- Event, sources ...Source) (wait func()) {
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if err := src.Run(ctx, out); err != nil {
				slog.Error("Events: source stopped", "source", src.Name(), "error", err)
				return
			}
			slog.Info("Events: source stopped", "source", src.Name())
		}(src)
	}
	return wg.Wait
}
