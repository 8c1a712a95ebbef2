// Package middleware defines the chain that raw session output passes through
// on its way from the shell to the renderer.
//
// Each link receives a chunk, may transform it, and hands the result to the
// next link. Base gives every link forward-by-default behaviour so concrete
// links only override what they change.
package middleware

import (
	"errors"
	"fmt"
)

// ErrNotLinkable is returned by Chain when a link other than the last one
// cannot accept a successor.
var ErrNotLinkable = errors.New("middleware cannot be linked")

// Middleware is one link in a session output chain.
//
// FeedFromSession is called once per chunk, in order, never concurrently for
// the same chain. Close tears the link down and propagates to the next one.
type Middleware interface {
	FeedFromSession(data []byte)
	Close()
}

// Link is a Middleware that forwards to a successor.
type Link interface {
	Middleware
	SetNext(next Middleware)
}

// Base forwards everything unchanged to Next. Embed it and override
// FeedFromSession or Close to intercept.
type Base struct {
	Next Middleware
}

// SetNext sets the successor.
func (b *Base) SetNext(next Middleware) {
	b.Next = next
}

// FeedFromSession forwards data to the next link.
func (b *Base) FeedFromSession(data []byte) {
	if b.Next != nil {
		b.Next.FeedFromSession(data)
	}
}

// Close closes the next link.
func (b *Base) Close() {
	if b.Next != nil {
		b.Next.Close()
	}
}

// Chain connects ms in order and returns the head. Every element except the
// last must implement Link.
func Chain(ms ...Middleware) (Middleware, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("chain: no middleware given")
	}
	for i := 0; i < len(ms)-1; i++ {
		l, ok := ms[i].(Link)
		if !ok {
			return nil, fmt.Errorf("chain position %d (%T): %w", i, ms[i], ErrNotLinkable)
		}
		l.SetNext(ms[i+1])
	}
	return ms[0], nil
}
