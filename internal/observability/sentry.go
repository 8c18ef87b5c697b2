package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// How long Close waits for buffered events before giving up. Serverless
// invocations freeze right after the response, so this must stay short.
const sentryFlushTimeout = 2 * time.Second

// InitSentry is a no-op without a DSN so local runs never need a Sentry
// project.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(sentryFlushTimeout)
}
