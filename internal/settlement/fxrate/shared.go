package fxrate

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// SharedResolver collapses concurrent resolutions for the same date into one
// provider chain run.
type SharedResolver struct {
	resolver *Resolver
	group    singleflight.Group
}

// NewSharedResolver wraps a resolver.
func NewSharedResolver(r *Resolver) *SharedResolver {
	return &SharedResolver{resolver: r}
}

// Resolve runs or joins the chain for date. A caller whose context ends early
// stops waiting; the shared run continues for the others.
func (s *SharedResolver) Resolve(ctx context.Context, date time.Time) Resolution {
	key := date.Format("2006-01-02")
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.resolver.Resolve(context.WithoutCancel(ctx), date), nil
	})
	select {
	case <-ctx.Done():
		return Resolution{Failed: true}
	case res := <-ch:
		return res.Val.(Resolution)
	}
}
