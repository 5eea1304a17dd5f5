// Package providers defines the pluggable video provider surface and the
// type-keyed registry used to look up provider implementations. Providers
// submit work to external generation or composition services and report
// normalized poll results; they never drive job lifecycle themselves.
package providers
