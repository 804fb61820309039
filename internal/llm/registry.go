package llm

import "fmt"

// ProviderFactory builds a configured Provider, typically from env.
type ProviderFactory func() (Provider, error)

var providers = make(map[string]ProviderFactory)

// RegisterProvider makes a factory selectable by name. Providers call
// this from init so importing the package is enough to enable it.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewProvider instantiates the named provider, or errors when no
// package registered under that name was imported.
func NewProvider(name string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	return factory()
}
