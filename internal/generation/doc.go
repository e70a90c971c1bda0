// Package generation defines the raw failure shape reported by provider
// adapters and the pure classifier that maps raw failures onto the
// closed set of domain error kinds.
package generation
