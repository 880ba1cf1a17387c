package simulate

import (
	"context"
	"sync"

	"github.com/sontungtran/dopt/opt"
)

// RunPair runs coord and sim against the two ends of one pipe. Whichever side
// finishes first closes the pipe, which ends the other side gracefully.
func RunPair(ctx context.Context, coord *opt.Coordinator, sim *Simulator, pipe *opt.PipeEnd) (coordErr, simErr error) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		simErr = sim.Run(ctx)
		_ = pipe.Close()
	}()

	coordErr = coord.Run(ctx)
	_ = pipe.Close()
	wg.Wait()
	return coordErr, simErr
}
