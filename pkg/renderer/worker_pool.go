package renderer

import (
	"runtime"
	"sync"
)

// TaskRenderer renders a single task. Implementations must be safe for
// concurrent use by every worker of a pool.
type TaskRenderer interface {
	RenderTask(task RenderTask) TaskResult
}

// WorkerPool runs render tasks on a fixed number of goroutines
type WorkerPool struct {
	taskQueue   chan RenderTask
	resultQueue chan TaskResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker handles individual render tasks
type Worker struct {
	ID          int
	renderer    TaskRenderer
	taskQueue   chan RenderTask
	resultQueue chan TaskResult
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// Queues are buffered for maxTasks so submitting never blocks on results.
func NewWorkerPool(renderer TaskRenderer, numWorkers, maxTasks int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		taskQueue:   make(chan RenderTask, maxTasks),
		resultQueue: make(chan TaskResult, maxTasks),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			renderer:    renderer,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop closes the task queue, waits for workers to drain it and closes the
// result queue
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// SubmitTask submits a task to the worker pool
func (wp *WorkerPool) SubmitTask(task RenderTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed task result
func (wp *WorkerPool) GetResult() (TaskResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		w.resultQueue <- w.renderer.RenderTask(task)
	}
}
