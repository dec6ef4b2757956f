package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Default route for keys without a binding.
const (
	DefaultPlugin = "keyboard"
	DefaultAction = "type"
)

// Route names the plugin action a key fires.
type Route struct {
	Plugin string
	Action string
	Config json.RawMessage
}

// Router resolves a key id to a route. ok is false when the key should
// not fire anything.
type Router interface {
	Route(keyID string) (route Route, ok bool, err error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(keyID string) (Route, bool, error)

// Route calls f.
func (f RouterFunc) Route(keyID string) (Route, bool, error) { return f(keyID) }

// DefaultRouter sends every key to the keyboard plugin's type action.
var DefaultRouter = RouterFunc(func(string) (Route, bool, error) {
	return Route{Plugin: DefaultPlugin, Action: DefaultAction}, true, nil
})

// Lookup finds plugins by name. *Manager satisfies it.
type Lookup interface {
	Get(name string) (*Plugin, error)
}

// Runner executes a plugin request. *Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Dispatcher runs key presses through plugins on its own goroutine so the
// frame loop never waits on a plugin process.
type Dispatcher struct {
	lookup Lookup
	runner Runner
	router Router
	queue  chan string
}

// NewDispatcher creates a dispatcher that buffers up to queueSize presses.
func NewDispatcher(lookup Lookup, runner Runner, router Router, queueSize int) *Dispatcher {
	if router == nil {
		router = DefaultRouter
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		lookup: lookup,
		runner: runner,
		router: router,
		queue:  make(chan string, queueSize),
	}
}

// Dispatch queues keyID without blocking. It returns false and drops the
// press when the queue is full.
func (d *Dispatcher) Dispatch(keyID string) bool {
	select {
	case d.queue <- keyID:
		return true
	default:
		log.Printf("plugin: dropping key %q, dispatch queue full", keyID)
		return false
	}
}

// Run handles queued presses until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case keyID := <-d.queue:
			if err := d.Handle(ctx, keyID); err != nil {
				log.Printf("plugin: key %q: %v", keyID, err)
			}
		}
	}
}

// Handle resolves and executes one key press synchronously.
func (d *Dispatcher) Handle(ctx context.Context, keyID string) error {
	route, ok, err := d.router.Route(keyID)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	if !ok {
		return nil
	}

	p, err := d.lookup.Get(route.Plugin)
	if err != nil {
		return fmt.Errorf("%s: %w", route.Plugin, err)
	}
	if !p.Supports(route.Action) {
		return fmt.Errorf("%s does not support action %q", route.Plugin, route.Action)
	}

	resp, err := d.runner.Execute(ctx, p, &Request{
		Action: route.Action,
		Key:    keyID,
		Config: route.Config,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s/%s: %s", route.Plugin, route.Action, resp.Error)
	}
	return nil
}
