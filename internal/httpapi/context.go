package httpapi

import (
	"context"
	"net/http"
	"time"
)

// serverBaseCtx is canceled on shutdown so queued analyses stop waiting.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}

// analysisContext bounds one analysis by the client connection, server
// shutdown and the optional analysis timeout.
func analysisContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if inferTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, time.Duration(inferTimeout)*time.Second)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

// abandoned reports whether nobody is left to read the response.
func abandoned(r *http.Request) bool {
	return r.Context().Err() != nil || serverBaseCtx.Err() != nil
}
