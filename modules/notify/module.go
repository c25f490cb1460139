// Package notify provides the 'notify' runner: it pushes a progress event to
// a socket.io endpoint, e.g. a lab dashboard watching long preprocessing
// runs.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/cryoflow/internal/ctxlog"
	"github.com/vk/cryoflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the notify runner.
type Input struct {
	URL                string         `cryo:"url"`
	Namespace          string         `cryo:"namespace"`
	Event              string         `cryo:"event"`
	Data               map[string]any `cryo:"data"`
	AckEvent           string         `cryo:"ack_event"`
	Timeout            string         `cryo:"timeout"`
	InsecureSkipVerify bool           `cryo:"insecure_skip_verify"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// Output defines the data structure returned by the runner. The ack payload
// is carried as its JSON encoding so downstream expressions can consume it
// as a plain string.
type Output struct {
	ResponseData string `cty:"response_data"`
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	value *Output
	err   error
}

// OnRunNotify is the handler for the 'notify' runner's on_run lifecycle
// event. It connects, emits the event, and returns; when ack_event is set it
// additionally waits for that event and returns its payload.
func OnRunNotify(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "notify", "url", input.URL, "event", input.Event)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if input.Event == "" {
		return nil, fmt.Errorf("notify: event name is required")
	}

	var isConnected atomic.Bool

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		logger.Warn("Failed to parse timeout, using default 10s", "inputTimeout", input.Timeout, "error", err)
		timeout = 10 * time.Second
	}

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected to notification endpoint", "namespace", input.Namespace, "sid", io.Id())

		jsonData, _ := json.Marshal(input.Data)
		logger.Info("Emitting event", "event", input.Event, "data", string(jsonData))
		io.Emit(input.Event, input.Data)

		if input.AckEvent == "" {
			done <- opResult{value: &Output{}}
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("connect error: %v", errs[0])
		}
		done <- opResult{err: err}
	})

	if input.AckEvent != "" {
		io.On(types.EventName(input.AckEvent), func(data ...any) {
			out := &Output{}
			if len(data) > 0 {
				encoded, err := json.Marshal(data[0])
				if err != nil {
					done <- opResult{err: fmt.Errorf("failed to encode %q payload: %w", input.AckEvent, err)}
					return
				}
				out.ResponseData = string(encoded)
			}
			done <- opResult{value: out}
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return nil, fmt.Errorf("timed out after connecting while waiting for event %q", input.AckEvent)
		}
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunNotify", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunNotify,
	})
}
