// Package endpoint defines pluggable protocol command handlers and the
// process-wide registry they are looked up in.
//
// An endpoint is a Go type that embeds Base and optionally implements the
// capability interfaces:
//   - RouteBinder: attaches one or more HTTP routes for the command
//   - Transformer: rewrites a later response for the same session, used to
//     collect a confirmation the endpoint staged
//
// The canonical command name is the endpoint's type name (*Forward → "Forward"),
// which is also the name of the browser-side handler that executes it.
//
// Lifecycle:
//  1. Register every endpoint factory at startup, then Seal the registry
//  2. Per request, Descriptor.Instantiate produces a fresh instance with its
//     own command ID and emits a "created" event
//  3. The instance handles exactly one request and is then discarded
//
// Example Usage:
//
//	reg := endpoint.NewRegistry(endpoint.NewNotifier(logger))
//	reg.MustRegister(func() endpoint.Endpoint { return &Forward{} })
//	reg.Seal()
//	unsubscribe := reg.Events().Subscribe(func(e endpoint.Endpoint) { ... })
package endpoint
