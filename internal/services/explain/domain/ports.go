package domain

import "context"

// ServicePort is the submission workflow the transport layer needs
type ServicePort interface {
	Submit(ctx context.Context, in SubmitInput) (Submission, error)
	Get(ctx context.Context, id string) (Submission, error)
	Events(ctx context.Context, id string) ([]EventRecord, error)
	Recent(ctx context.Context, limit int) ([]Submission, error)
	Cancel(ctx context.Context, id string) (Submission, error)
	PreviewKey(ctx context.Context, text string) (KeyPreview, error)
}

// StreamPort follows a submission live
// The returned stop func must be called once the caller is done
type StreamPort interface {
	Subscribe(ctx context.Context, id string) (history []EventRecord, live <-chan EventRecord, stop func(), err error)
}
