package strategy

import (
	"sort"
	"sync"

	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// Factory builds a fresh strategy instance so concurrent runs never
// share indicator state.
type Factory func() Strategy

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var defaultRegistry = &registry{factories: make(map[string]Factory)}

func init() {
	Register(IDMACross, func() Strategy { return NewMACross() })
	Register(IDRSI, func() Strategy { return NewRSI() })
}

// Register makes a strategy id resolvable. Later registrations under
// the same id replace earlier ones.
func Register(id string, factory Factory) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	defaultRegistry.factories[id] = factory
}

// Create instantiates the strategy registered under id.
func Create(id string) (Strategy, error) {
	defaultRegistry.mu.RLock()
	factory, ok := defaultRegistry.factories[id]
	defaultRegistry.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy: %s", id)
	}

	return factory(), nil
}

// IDs returns the registered strategy ids in sorted order.
func IDs() []string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	ids := make([]string, 0, len(defaultRegistry.factories))
	for id := range defaultRegistry.factories {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
