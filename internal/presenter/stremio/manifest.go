// Package stremio renders the Stremio addon manifest and stream response
// shapes defined in domain/stremio.go.
package stremio

import "github.com/strob0t/scavengarr/internal/domain"

// BuildManifest returns the addon manifest advertised at /stremio/manifest.json.
func BuildManifest(id, name, version string) domain.Manifest {
	return domain.Manifest{
		ID:          id,
		Name:        name,
		Description: "Meta-indexer addon serving ranked streams from scraped hoster links.",
		Version:     version,
		Resources:   []string{"stream"},
		Types:       []string{"movie", "series"},
		IDPrefixes:  []string{"tt"},
	}
}
