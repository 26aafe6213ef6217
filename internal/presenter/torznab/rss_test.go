package torznab

import (
	"strings"
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
)

func TestRenderResultsOmitsMissingNumericAttrs(t *testing.T) {
	out, err := RenderResults("Scavengarr", []domain.TorznabItem{{
		Title:         "Ubuntu 22.04",
		GUID:          "https://hoster.example/file/A",
		Link:          "/api/v1/download/job-1",
		EnclosureURL:  "/api/v1/download/job-1",
		EnclosureType: "application/x-crawljob",
	}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := string(out)
	if !strings.Contains(doc, "<guid>https://hoster.example/file/A</guid>") {
		t.Fatalf("expected the stable GUID to be the original download URL, got: %s", doc)
	}
	if !strings.Contains(doc, `type="application/x-crawljob"`) {
		t.Fatalf("expected the crawljob enclosure media type, got: %s", doc)
	}
	if strings.Contains(doc, `name="seeders"`) || strings.Contains(doc, `name="size"`) {
		t.Fatalf("expected missing numeric fields to be omitted, got: %s", doc)
	}
}

func TestRenderResultsIncludesProvidedNumericAttrs(t *testing.T) {
	size := int64(524288000)
	seeders := 12
	out, err := RenderResults("Scavengarr", []domain.TorznabItem{{
		Title:     "X",
		GUID:      "https://hoster/x",
		SizeBytes: &size,
		Seeders:   &seeders,
		Category:  "2000",
	}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := string(out)
	if !strings.Contains(doc, `name="size" value="524288000"`) {
		t.Fatalf("expected size attr, got: %s", doc)
	}
	if !strings.Contains(doc, `name="seeders" value="12"`) {
		t.Fatalf("expected seeders attr, got: %s", doc)
	}
}

func TestExtendedProbeItemUsesCrawlJobEnclosure(t *testing.T) {
	probe := ExtendedProbeItem()
	if probe.EnclosureType != "application/x-crawljob" {
		t.Fatalf("enclosure type = %q, want application/x-crawljob", probe.EnclosureType)
	}
}
