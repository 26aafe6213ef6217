package torznab

import (
	"encoding/xml"
	"fmt"

	"github.com/strob0t/scavengarr/internal/domain"
)

const torznabNamespace = "http://torznab.com/schemas/2015/feed"

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	XmlnsTorznab string `xml:"xmlns:torznab,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title     string        `xml:"title"`
	GUID      string        `xml:"guid"`
	Link      string        `xml:"link"`
	Comments  string        `xml:"comments,omitempty"`
	PubDate   string        `xml:"pubDate,omitempty"`
	Category  string        `xml:"category,omitempty"`
	Enclosure rssEnclosure  `xml:"enclosure"`
	Attrs     []torznabAttr `xml:"torznab:attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr,omitempty"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// RenderResults marshals a list of Torznab items as RSS 2.0 with the
// torznab:attr extension namespace. An empty or nil items slice still
// renders a well-formed, empty feed — the caller is responsible for
// collapsing plugin errors to an empty slice in production mode.
func RenderResults(serverTitle string, items []domain.TorznabItem) ([]byte, error) {
	doc := rssDocument{
		Version:      "2.0",
		XmlnsTorznab: torznabNamespace,
		Channel:      rssChannel{Title: serverTitle},
	}
	for _, it := range items {
		doc.Channel.Items = append(doc.Channel.Items, toRSSItem(it))
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func toRSSItem(it domain.TorznabItem) rssItem {
	item := rssItem{
		Title:    it.Title,
		GUID:     it.GUID,
		Link:     it.Link,
		Comments: it.Comments,
		Category: it.Category,
		Enclosure: rssEnclosure{
			URL:  it.EnclosureURL,
			Type: it.EnclosureType,
		},
	}
	if !it.PubDate.IsZero() {
		item.PubDate = it.PubDate.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	}
	if it.SizeBytes != nil {
		item.Enclosure.Length = fmt.Sprintf("%d", *it.SizeBytes)
		item.Attrs = append(item.Attrs, torznabAttr{Name: "size", Value: fmt.Sprintf("%d", *it.SizeBytes)})
	}
	if it.Seeders != nil {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "seeders", Value: fmt.Sprintf("%d", *it.Seeders)})
	}
	if it.Peers != nil {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "peers", Value: fmt.Sprintf("%d", *it.Peers)})
	}
	if it.Grabs != nil {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "grabs", Value: fmt.Sprintf("%d", *it.Grabs)})
	}
	if it.DownloadVolumeFactor != nil {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "downloadvolumefactor", Value: fmt.Sprintf("%g", *it.DownloadVolumeFactor)})
	}
	if it.UploadVolumeFactor != nil {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "uploadvolumefactor", Value: fmt.Sprintf("%g", *it.UploadVolumeFactor)})
	}
	if it.Category != "" {
		item.Attrs = append(item.Attrs, torznabAttr{Name: "category", Value: it.Category})
	}
	return item
}

// ExtendedProbeItem is the synthetic feed item returned for a t=search
// probe with extended=1, letting indexer managers confirm this capability
// without depending on a live plugin result.
func ExtendedProbeItem() domain.TorznabItem {
	return domain.TorznabItem{
		Title:         "Scavengarr Extended Capability Probe",
		GUID:          "scavengarr:extended-probe",
		Link:          "https://example.invalid/probe",
		EnclosureURL:  "https://example.invalid/probe",
		EnclosureType: "application/x-crawljob",
		Category:      "8000",
	}
}
