// Package plugin implements the plugin contract, registry, and the two
// plugin bases: HTTP mode and headless mode. Concrete site adapters
// embed a base and implement Descriptor, Search and Cleanup.
package plugin

import (
	"context"
	"errors"

	"github.com/strob0t/scavengarr/internal/domain"
)

// FailureKind is a closed taxonomy carried as a string tag on structured
// log fields rather than a type hierarchy.
type FailureKind string

const (
	FailureTransport  FailureKind = "transport"
	FailureHTTP4xx    FailureKind = "http-4xx"
	FailureHTTP5xx    FailureKind = "http-5xx"
	FailureParse      FailureKind = "parse"
	FailureCancelled  FailureKind = "cancelled"
	FailureTimeout    FailureKind = "timeout"
	FailureChallenge  FailureKind = "challenge"
)

var (
	ErrNotFound        = errors.New("plugin: not found")
	ErrLoadFailed      = errors.New("plugin: load error")
	ErrDuplicateName   = errors.New("plugin: duplicate name")
)

// Plugin is the uniform contract across HTTP and headless modes.
type Plugin interface {
	Descriptor() domain.PluginDescriptor
	Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error)
	Cleanup(ctx context.Context) error
}

// Factory lazily constructs a Plugin instance on first access.
type Factory func() (Plugin, error)
