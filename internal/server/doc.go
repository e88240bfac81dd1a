// Package server hosts the Fiber HTTP service and the middleware chain that
// sits in front of the upstream origin: recover, request IDs, metrics, the
// static layer serving previously written files, and the cache middleware
// that turns GET responses into those files. Handlers further down the chain
// publish bodies through Send so the cache sees them.
package server
