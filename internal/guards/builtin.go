package guards

import (
	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/internal/validation"
)

// Options configures the built-in providers.
type Options struct {
	Remote    RemoteConfig
	Validator *validation.SchemaValidator
}

// RegisterBuiltins registers every built-in provider in the catalog.
func RegisterBuiltins(c *guard.Catalog, opts Options) error {
	celProvider, err := NewCELProvider()
	if err != nil {
		return err
	}

	all := []guard.Provider{
		NewExprProvider(),
		celProvider,
		NewJQProvider(),
		NewJSONSchemaProvider(opts.Validator),
		NewRemoteProvider(opts.Remote),
		NewChainProvider(c),
	}
	for _, p := range all {
		if err := c.Register(p); err != nil {
			return err
		}
	}
	return nil
}
