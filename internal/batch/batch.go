// Package batch fans many independent inference requests out over a bounded
// number of goroutines.
package batch

import (
	"context"
	"fmt"

	"github.com/example/go-ortbind/internal/tensor"
	"golang.org/x/sync/errgroup"
)

// Inferer runs one name-keyed inference.
type Inferer interface {
	Infer(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error)
}

// RequestError identifies the request that stopped a batch.
type RequestError struct {
	Index int
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %d: %v", e.Index, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Run executes every request and returns the results in request order. The
// first failure cancels the requests that have not started yet and is
// returned as a *RequestError. workers <= 1 runs sequentially.
func Run(ctx context.Context, inf Inferer, requests []map[string]*tensor.Tensor, workers int) ([]map[string]*tensor.Tensor, error) {
	results := make([]map[string]*tensor.Tensor, len(requests))

	if workers <= 1 {
		for i, req := range requests {
			if err := ctx.Err(); err != nil {
				return nil, &RequestError{Index: i, Err: err}
			}
			out, err := inf.Infer(ctx, req)
			if err != nil {
				return nil, &RequestError{Index: i, Err: err}
			}
			results[i] = out
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, req := range requests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &RequestError{Index: i, Err: err}
			}
			out, err := inf.Infer(gctx, req)
			if err != nil {
				return &RequestError{Index: i, Err: err}
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
