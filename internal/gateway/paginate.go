package gateway

import "context"

// pageFunc fetches the page described by req. It returns the page items, the request
// for the following page and whether the provider signalled that more pages exist.
type pageFunc[R, T any] func(ctx context.Context, req R) (items []T, next R, more bool, err error)

// paginate drives fetch from first until the provider reports no more pages, handing
// every item to visit in arrival order. visit returns false to stop paging immediately;
// the remaining items of the current page and all later pages are skipped.
// It reports how many requests were issued.
func paginate[R, T any](ctx context.Context, first R, fetch pageFunc[R, T], visit func(T) (bool, error)) (int, error) {
	req := first
	requests := 0
	for {
		if err := ctx.Err(); err != nil {
			return requests, err
		}
		items, next, more, err := fetch(ctx, req)
		requests++
		if err != nil {
			return requests, err
		}
		for _, item := range items {
			cont, err := visit(item)
			if err != nil {
				return requests, err
			}
			if !cont {
				return requests, nil
			}
		}
		if !more {
			return requests, nil
		}
		req = next
	}
}
