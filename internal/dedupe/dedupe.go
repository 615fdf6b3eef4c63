// Package dedupe provides keyed coalescing of concurrent operations.
//
// N simultaneous callers for the same key share a single execution and all
// receive its result (or its error). Once the execution completes the
// in-flight record is removed, so a later call for the same key runs again.
package dedupe

import "golang.org/x/sync/singleflight"

// Group coalesces concurrent calls by key. The zero value is ready to use.
// V is the result type shared by all callers of a key.
type Group[V any] struct {
	sf singleflight.Group
}

// Do executes fn for key, unless a call for key is already in flight, in
// which case it waits for that call and returns its result. Errors are
// delivered to every waiter identically and are never cached: the next Do
// after completion re-executes fn.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error) {
	v, err, _ := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// DoShared is Do plus a flag reporting whether the result was shared with
// other concurrent callers. Useful for instrumentation.
func (g *Group[V]) DoShared(key string, fn func() (V, error)) (V, bool, error) {
	v, err, shared := g.sf.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero V
		return zero, shared, err
	}
	return v.(V), shared, nil
}

// Forget drops the in-flight record for key, so the next Do executes fn
// even if an earlier call has not completed yet.
func (g *Group[V]) Forget(key string) {
	g.sf.Forget(key)
}
