package collection

import (
	"fmt"
	"sync"
)

// runFanOut executes each job concurrently and collects the first error
// (if any), in the spirit of the teacher's ScanPool.ExecuteParallel
// (pkg/workerpool/scan_pool.go) — a fixed, one-shot wait-group join
// rather than a pool, since the bulk write engine only ever fans out a
// fixed set of substrate mutations per call, never an open-ended task
// queue.
func runFanOut(jobs ...func() error) error {
	var wg sync.WaitGroup
	errs := make([]error, len(jobs))

	wg.Add(len(jobs))
	for i, job := range jobs {
		i, job := i, job
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = panicErr(r)
				}
			}()
			errs[i] = job()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func panicErr(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &recoveredPanic{value: r}
}

type recoveredPanic struct {
	value interface{}
}

func (p *recoveredPanic) Error() string {
	return fmt.Sprintf("collection: fan-out task panicked: %v", p.value)
}
