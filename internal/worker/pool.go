// Package worker runs independent terrain generation jobs in parallel.
// Each job owns its own grid and amplitude source, so no state is shared
// between workers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator is the interface for terrain generation.
// This matches the signature of pipeline.Generator.Generate.
type Generator interface {
	Generate(ctx context.Context, name string, seed uint32, force bool) (path string, usedSeed uint32, err error)
}

// Task represents a single terrain generation task.
type Task struct {
	Name  string
	Seed  uint32
	Force bool
}

// Result represents the outcome of a terrain generation task.
type Result struct {
	Task    Task
	Path    string
	Seed    uint32
	Err     error
	Elapsed time.Duration
}

// SeedTasks builds count tasks over consecutive seeds starting at base.
// Names are prefix-seed. A zero seed is skipped so every task stays reproducible.
func SeedTasks(prefix string, base uint32, count int, force bool) []Task {
	tasks := make([]Task, 0, max(count, 0))
	seed := base
	for len(tasks) < count {
		if seed != 0 {
			tasks = append(tasks, Task{Name: fmt.Sprintf("%s-%d", prefix, seed), Seed: seed, Force: force})
		}
		seed++
	}
	return tasks
}

// ProgressFunc is called after each task completes with that task's result
// and the running counts.
type ProgressFunc func(r Result, completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool manages parallel terrain generation.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns results.
// Tasks are processed in parallel by the configured number of workers.
// The function blocks until all tasks complete or the context is cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	// Create channels
	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	// Track progress
	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	// Feed tasks. taskCh holds every task, so these sends never block and
	// each task yields exactly one Result; after cancellation the workers
	// report the rest with ctx.Err().
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	// Collect results in a separate goroutine
	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			// Update progress
			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(result, c, len(tasks), f)
			}
		}
		close(done)
	}()

	// Wait for workers to finish
	wg.Wait()
	close(resultCh)

	// Wait for result collection to finish
	<-done

	return results
}

// worker processes tasks from the task channel and sends results to the result channel.
func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			// Send cancellation result
			results <- Result{
				Task: task,
				Err:  ctx.Err(),
			}
			continue
		default:
		}

		start := time.Now()
		path, seed, err := p.generator.Generate(ctx, task.Name, task.Seed, task.Force)
		elapsed := time.Since(start)

		results <- Result{
			Task:    task,
			Path:    path,
			Seed:    seed,
			Err:     err,
			Elapsed: elapsed,
		}
	}
}
