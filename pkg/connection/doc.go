// Package connection keeps device links alive.
//
// A Supervisor dials a stream, runs a transport.Link over it and waits for
// the link to fail. It then sleeps for an exponentially growing, jittered
// delay and dials again until its context is cancelled:
//
//	delay = base + random(0, base * jitter)
//	base  = 1s, 2s, 4s, ... capped at 30s
//
// The base delay returns to its initial value whenever a link opens.
package connection
