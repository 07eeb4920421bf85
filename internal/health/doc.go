// Package health has the liveness and readiness probes served at /-/healthy
// and /-/ready on both listeners.
//
// Readiness is the conjunction of a [ShutdownGate], which fails first on
// drain so load balancers stop routing, and the content source having an
// active document to render from.
package health
