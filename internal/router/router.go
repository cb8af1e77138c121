package router

import "context"

// Router accepts swap requests. Outcomes are delivered through a Source.
type Router interface {
	Submit(ctx context.Context, req Request) (Ack, error)
}

// Source streams router outcomes to handler until ctx ends.
type Source interface {
	Run(ctx context.Context, handler func(Outcome)) error
}
