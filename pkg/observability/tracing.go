package observability

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer wraps remote-store calls in X-Ray subsegments so time spent on
// the network is distinguishable from cache-served reads. A nil *Tracer
// is valid and traces nothing; cache operations are memory-bound and are
// never traced.
type Tracer struct {
	serviceName string
}

// NewTracer creates a tracer for the given service name.
func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// TraceStoreCall runs fn inside a subsegment named after the store
// operation and collection, annotating failures.
func (t *Tracer) TraceStoreCall(ctx context.Context, operation, collection string, fn func(context.Context) error) error {
	if t == nil {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, fmt.Sprintf("%s.store.%s", t.serviceName, operation))
	if seg == nil {
		return fn(ctx)
	}

	seg.AddAnnotation("collection", collection)
	err := fn(ctx)
	if err != nil {
		seg.AddError(err)
	}
	seg.Close(err)
	return err
}

// AddAnnotation adds an indexed annotation to the current segment, if any.
func (t *Tracer) AddAnnotation(ctx context.Context, key, value string) {
	if t == nil {
		return
	}
	if seg := xray.GetSegment(ctx); seg != nil {
		seg.AddAnnotation(key, value)
	}
}
