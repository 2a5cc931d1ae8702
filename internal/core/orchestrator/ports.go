package orchestrator

import "context"

// Authorizer resolves the signing identity; it may prompt a user and may be declined
type Authorizer interface {
	Authorize(ctx context.Context) (Identity, error)
}

// Submitter issues the state-changing write and waits for it to be durably accepted
type Submitter interface {
	Submit(ctx context.Context, signer Identity, input string) (Receipt, error)
	AwaitAcceptance(ctx context.Context, r Receipt) error
}

// Querier is the side-effect-free lookup of a stored result by key
// An absent result is reported as the sentinel or an empty string, not as an error
type Querier interface {
	Query(ctx context.Context, key string) (string, error)
}

// AuthorizerFunc adapts a function to Authorizer
type AuthorizerFunc func(ctx context.Context) (Identity, error)

// Authorize calls f
func (f AuthorizerFunc) Authorize(ctx context.Context) (Identity, error) { return f(ctx) }

// QuerierFunc adapts a function to Querier
type QuerierFunc func(ctx context.Context, key string) (string, error)

// Query calls f
func (f QuerierFunc) Query(ctx context.Context, key string) (string, error) { return f(ctx, key) }
