package engine

import (
	"github.com/streamctl/streamctl/source"
)

// Constructor builds an engine reporting to cb.
type Constructor func(cb Callbacks) (Engine, error)

// Factory builds the engine for a route.
type Factory interface {
	New(route source.Route, cb Callbacks) (Engine, error)
}

// Registry is a Factory backed by one constructor per route.
type Registry map[source.Route]Constructor

// New returns SourceUnsupported for routes without a constructor and
// EngineInitFailed when the constructor fails. The error is always an *ErrorInfo.
func (r Registry) New(route source.Route, cb Callbacks) (Engine, error) {
	ctor, ok := r[route]
	if !ok || ctor == nil {
		return nil, Newf(SourceUnsupported, "no engine for route %s", route)
	}

	e, err := ctor(cb)
	if err != nil {
		return nil, Wrap(EngineInitFailed, err, "construct "+route.String()+" engine")
	}
	if e == nil {
		return nil, Newf(EngineInitFailed, "%s constructor returned no engine", route)
	}

	return e, nil
}
