package auth

import (
	"context"
	"fmt"
	"sync"
)

// Hasher runs password hashing on a fixed set of workers so that a burst
// of logins cannot starve the request-serving goroutines. Submitting
// blocks until a queue slot frees up or the caller's context is done; a
// panic inside a task comes back to the caller as an error, it never
// takes the worker down.
type Hasher struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewHasher starts a pool with the given number of workers. The queue
// holds one pending task per worker.
func NewHasher(workers int) *Hasher {
	if workers < 1 {
		workers = 1
	}

	h := &Hasher{tasks: make(chan func(), workers)}
	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	return h
}

func (h *Hasher) worker() {
	defer h.wg.Done()
	for task := range h.tasks {
		task()
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (h *Hasher) Close() {
	h.closeOnce.Do(func() { close(h.tasks) })
	h.wg.Wait()
}

type hashResult struct {
	encoded string
	ok      bool
	err     error
}

func (h *Hasher) run(ctx context.Context, fn func() hashResult) (hashResult, error) {
	if err := ctx.Err(); err != nil {
		return hashResult{}, err
	}

	done := make(chan hashResult, 1)

	task := func() {
		defer func() {
			if p := recover(); p != nil {
				done <- hashResult{err: fmt.Errorf("password hashing panicked: %v", p)}
			}
		}()
		done <- fn()
	}

	select {
	case h.tasks <- task:
	case <-ctx.Done():
		return hashResult{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		// The worker finishes the task anyway; the buffered channel keeps
		// it from blocking on a caller that is gone.
		return hashResult{}, ctx.Err()
	}
}

// Hash computes a PHC-format hash of password on a pool worker.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	res, err := h.run(ctx, func() hashResult {
		encoded, err := HashPassword(password)
		return hashResult{encoded: encoded, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.encoded, res.err
}

// Verify checks password against encoded on a pool worker.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	res, err := h.run(ctx, func() hashResult {
		ok, err := VerifyPassword(password, encoded)
		return hashResult{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}
