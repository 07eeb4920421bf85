package httpmw

import (
	"errors"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

// Recover turns a handler panic into a 500 and one error record. onPanic
// runs after logging. http.ErrAbortHandler is re-raised so net/http can
// abort the connection.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if e, ok := rec.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(rec)
				}

				ctx := r.Context()
				logger.Error(ctx, panicError(rec), "handler panic recovered",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(ctx),
					"client.address", ClientIPFromContext(ctx),
				)
				if onPanic != nil {
					onPanic()
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicError(rec any) error {
	if e, ok := rec.(error); ok {
		return xerrors.Wrap(e, "panic")
	}
	return xerrors.Newf("panic: %v", rec)
}
