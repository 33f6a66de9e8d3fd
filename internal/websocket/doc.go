// Package websocket implements the in-process connection registry using the actor pattern.
//
// The Hub owns a map from connection id to live socket behind a single
// goroutine + command channel (no mutexes). Per-connection writer goroutines
// isolate slow clients. The Hub doubles as the deliverer for the
// single-process topology: Deliver enqueues onto a connection's send buffer
// and reports gone/slow connections so the broadcast engine can prune them.
package websocket
