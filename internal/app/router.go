package app

import (
	"github.com/ayusman/fingerfuse/internal/plugin"
	"github.com/ayusman/fingerfuse/internal/store"
)

// BindingSource looks up stored key bindings. *store.BindingRepository
// satisfies it.
type BindingSource interface {
	GetByKeyID(keyID string) (*store.Binding, error)
}

// NewBindingRouter routes keys through stored bindings. Unbound keys go to
// the default keyboard plugin; disabled bindings fire nothing.
func NewBindingRouter(src BindingSource) plugin.Router {
	return plugin.RouterFunc(func(keyID string) (plugin.Route, bool, error) {
		b, err := src.GetByKeyID(keyID)
		if err != nil {
			return plugin.Route{}, false, err
		}
		if b == nil {
			return plugin.DefaultRouter.Route(keyID)
		}
		if !b.Enabled {
			return plugin.Route{}, false, nil
		}
		return plugin.Route{Plugin: b.PluginName, Action: b.ActionName, Config: b.Config}, true, nil
	})
}
