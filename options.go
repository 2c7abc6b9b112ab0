package tickfsm

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tobbstr/tickfsm"

// UnhandledErrorMode selects what Update does with a failure raised by a state hook.
type UnhandledErrorMode int

const (
	// ThrowError returns hook failures to the caller of Update.
	ThrowError UnhandledErrorMode = iota
	// CatchError offers hook failures to the registered UnhandledErrorHandlers and returns them only when no
	// handler reports them handled.
	CatchError
	// CatchStateError offers hook failures to the Error hook of the current state. Without a current state it
	// behaves like ThrowError.
	CatchStateError
)

func (m UnhandledErrorMode) String() string {
	switch m {
	case ThrowError:
		return "throw"
	case CatchError:
		return "catch"
	case CatchStateError:
		return "catch-state"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m UnhandledErrorMode) MarshalText() ([]byte, error) {
	switch m {
	case ThrowError, CatchError, CatchStateError:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown unhandled error mode (%d)", int(m))
	}
}

func (m *UnhandledErrorMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "throw", "":
		*m = ThrowError
	case "catch":
		*m = CatchError
	case "catch-state":
		*m = CatchStateError
	default:
		return fmt.Errorf("unknown unhandled error mode (%q)", text)
	}
	return nil
}

// UnhandledErrorHandler is offered hook failures in CatchError mode. It reports whether the error was handled.
type UnhandledErrorHandler func(ctx context.Context, err error) bool

type options struct {
	logger            *slog.Logger
	tracer            trace.Tracer
	allowRetransition bool
	mode              UnhandledErrorMode
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(instrumentationName),
		mode:   ThrowError,
	}
}

// Option configures a Machine.
type Option func(*options)

// WithLogger sets the logger used to report registrations, transitions and handled failures. Nil loggers are
// ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used to record one span per Update. The global tracer provider is used by default.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAllowRetransition lets a staged transition be replaced by a later SendEvent or PopState before it is applied.
func WithAllowRetransition(allow bool) Option {
	return func(o *options) {
		o.allowRetransition = allow
	}
}

// WithUnhandledErrorMode sets how hook failures are dispatched.
func WithUnhandledErrorMode(mode UnhandledErrorMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}
