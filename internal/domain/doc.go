// Package domain defines the core business entities of the generation
// service: tasks, their lifecycle, request/result payloads, and the
// closed set of classified error kinds. It has no dependencies on other
// internal packages.
package domain
