// Package torznab renders Torznab caps and search results as RSS 2.0 +
// the torznab:attr namespace, matching the Prowlarr/Sonarr/Radarr wire
// contract.
package torznab

import (
	"encoding/xml"

	"github.com/strob0t/scavengarr/internal/domain"
)

type capsDocument struct {
	XMLName xml.Name    `xml:"caps"`
	Server  capsServer  `xml:"server"`
	Limits  capsLimits  `xml:"limits"`
	Searching capsSearching `xml:"searching"`
	Categories capsCategories `xml:"categories"`
}

type capsServer struct {
	Title   string `xml:"title,attr"`
	Version string `xml:"version,attr"`
}

type capsLimits struct {
	Default int `xml:"default,attr"`
	Max     int `xml:"max,attr"`
}

type capsSearching struct {
	Search       capsSearchMode `xml:"search"`
	TVSearch     capsSearchMode `xml:"tv-search"`
	MovieSearch  capsSearchMode `xml:"movie-search"`
}

type capsSearchMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type capsCategories struct {
	Category []capsCategory `xml:"category"`
}

type capsCategory struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// RenderCaps marshals an indexer's capabilities document.
func RenderCaps(info domain.IndexerInfo, categories []domain.TorznabCategory) ([]byte, error) {
	doc := capsDocument{
		Server: capsServer{Title: info.Name, Version: info.Version},
		Limits: capsLimits{Default: 100, Max: 100},
		Searching: capsSearching{
			Search:      capsSearchMode{Available: "yes", SupportedParams: "q"},
			TVSearch:    capsSearchMode{Available: "yes", SupportedParams: "q,season,ep"},
			MovieSearch: capsSearchMode{Available: "yes", SupportedParams: "q"},
		},
	}
	for _, cat := range categories {
		doc.Categories.Category = append(doc.Categories.Category, capsCategory{ID: atoiCategory(cat.ID), Name: cat.Name})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func atoiCategory(id string) int {
	n := 0
	for _, c := range id {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
