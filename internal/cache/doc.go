// Package cache turns dynamic GET responses into static files. A Cacher wraps
// the "send body" step of a request pipeline: when the wrapped send is invoked,
// the body is scheduled for writing under Root at a path mirroring the request
// URL, then the original send runs with the same bytes. Writes are best-effort
// and never reach the response path; a separate static layer is expected to
// serve the files on later requests. Filesystem access goes through afero so
// the root can live on the OS or in memory.
package cache
