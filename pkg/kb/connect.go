package kb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
)

// Default connection budget.
const (
	DefaultConnectTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// OpenFunc makes one attempt to load a knowledge base. The returned release
// function, if non-nil, frees backend resources and is called exactly once.
type OpenFunc func(ctx context.Context) (kb KnowledgeBase, release func() error, err error)

// ConnectOptions bounds and checks a connection.
type ConnectOptions struct {
	Timeout         time.Duration
	PollInterval    time.Duration
	ExpectedVersion string
	Logger          logging.Logger
}

// Handle is an acquired knowledge base. Close must be called on every path.
type Handle struct {
	KB      KnowledgeBase
	Name    string
	release func() error
	once    sync.Once
	err     error
}

// Version returns the loaded knowledge base version.
func (h *Handle) Version() string {
	if h == nil || h.KB == nil {
		return ""
	}
	return h.KB.Version()
}

// Close releases the backend. It is safe to call more than once and on a nil handle.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if h.release != nil {
			h.err = h.release()
		}
	})
	return h.err
}

// Connect polls open until it succeeds or the timeout elapses, then checks
// the version. Failure to become ready is ErrKBNotReady; a version that does
// not match ExpectedVersion is ErrKBVersionMismatch. On any error the backend
// has already been released.
func Connect(ctx context.Context, open OpenFunc, opts ConnectOptions) (*Handle, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultConnectTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	h := &Handle{Name: "penf-ner-kb-" + uuid.New().String()}
	logger = logger.With(logging.F("kb_handle", h.Name))

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		kb, release, err := open(ctx)
		if err == nil {
			h.KB = kb
			h.release = release
			break
		}
		lastErr = err
		if errors.Is(err, pferrors.ErrMalformedRecord) || errors.Is(err, pferrors.ErrValidation) {
			return nil, err
		}
		logger.Debug("Knowledge base not ready", logging.F("attempt", attempt), logging.Err(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %s: %v", pferrors.ErrKBNotReady, opts.Timeout, lastErr)
		case <-time.After(opts.PollInterval):
		}
	}

	if opts.ExpectedVersion != "" && h.KB.Version() != opts.ExpectedVersion {
		got := h.KB.Version()
		if err := h.Close(); err != nil {
			logger.Warn("Failed to release knowledge base", logging.Err(err))
		}
		return nil, fmt.Errorf("%w: loaded %q, dictionary expects %q",
			pferrors.ErrKBVersionMismatch, got, opts.ExpectedVersion)
	}

	logger.Info("Knowledge base ready", logging.F("kb_version", h.KB.Version()))
	return h, nil
}
