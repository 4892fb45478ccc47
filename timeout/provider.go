package timeout

import (
	"context"
	"strings"

	"github.com/kbukum/actionexec/errors"
	"github.com/kbukum/actionexec/logger"
	"github.com/kbukum/actionexec/provider"
)

// Built-in handler names.
const (
	HandlerDefault = "default"
	HandlerSignal  = "signal"
	HandlerNoop    = "noop"
)

// Provider maps handler names to factories. Lookups by name replace loading
// a handler class reflectively.
type Provider struct {
	reg *provider.Registry[HandlerConfig, Handler]
	log *logger.Logger
}

// NewProvider returns a Provider with the built-in handlers registered.
func NewProvider() *Provider {
	p := &Provider{
		reg: provider.NewRegistry[HandlerConfig, Handler](),
		log: logger.Get(logger.ComponentTimeout),
	}
	p.Register(HandlerDefault, NewToolHandler)
	p.Register(HandlerSignal, NewSignalHandler)
	p.Register(HandlerNoop, NewNoopHandler)
	return p
}

// Register adds or replaces a handler factory.
func (p *Provider) Register(name string, f provider.Factory[HandlerConfig, Handler]) {
	p.reg.RegisterFactory(name, f)
}

// Names lists the registered handlers.
func (p *Provider) Names() []string {
	return p.reg.List()
}

// Lookup creates the named handler, reporting unknown names and factory
// failures as errors.
func (p *Provider) Lookup(name string, cfg HandlerConfig) (Handler, error) {
	if !p.reg.Has(name) {
		return nil, errors.HandlerNotFound(name)
	}
	h, err := p.reg.Create(name, cfg)
	if err != nil {
		return nil, errors.HandlerFailed(name, err)
	}
	if h == nil {
		return nil, errors.HandlerFailed(name, errors.New(errors.ErrCodeInternal, "factory returned nil"))
	}
	return h, nil
}

// Resolve creates the named handler, falling back to the default handler
// when the name is empty or unknown or its factory fails. If even the
// default cannot be built the result is a NoopHandler, so Resolve never
// returns nil.
func (p *Provider) Resolve(name string, cfg HandlerConfig) Handler {
	if name == "" {
		name = HandlerDefault
	}
	h, err := p.Lookup(name, cfg)
	if err == nil {
		return h
	}
	p.log.Warn("using default timeout handler", logger.MergeWithError(logger.Fields(logger.FieldHandler, name), err))

	if name != HandlerDefault {
		if h, err = p.Lookup(HandlerDefault, cfg); err == nil {
			return h
		}
		p.log.Error("default timeout handler unavailable", logger.ErrorFields("resolve", err))
	}
	return NoopHandler{}
}

// Preferred builds each named handler and returns the first one that is
// available on this machine. When none is, it returns Resolve of the first
// name so the choice is still logged and deterministic.
func (p *Provider) Preferred(ctx context.Context, cfg HandlerConfig, names ...string) Handler {
	candidates := make([]Handler, 0, len(names))
	first := ""
	for i, name := range names {
		name = strings.TrimSpace(name)
		if i == 0 {
			first = name
		}
		h, err := p.Lookup(name, cfg)
		if err != nil {
			p.log.Warn("skipping timeout handler", logger.MergeWithError(logger.Fields(logger.FieldHandler, name), err))
			continue
		}
		candidates = append(candidates, h)
	}
	if h, err := provider.FirstAvailable(ctx, candidates...); err == nil {
		return h
	}
	return p.Resolve(first, cfg)
}
