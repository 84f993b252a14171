// Package host provides the named service lookup rulewalk uses to obtain
// its rule registry.
//
// Services are registered under a name with a Provider. Providers are
// resolved lazily on first Lookup and the result is memoised, so an
// expensive provider (for example one that waits for openHAB to come up)
// runs at most once successfully. A failed provider is retried on the next
// Lookup.
//
// Lookup failures wrap ErrServiceUnavailable:
//
//	svc, err := locator.Lookup(ctx, config.DefaultRuleRegistryService)
//	if errors.Is(err, host.ErrServiceUnavailable) {
//	    // registry not reachable
//	}
package host
