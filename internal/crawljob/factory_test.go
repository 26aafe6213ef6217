package crawljob

import (
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
)

func TestFactoryRejectsResultWithNoValidatedLinks(t *testing.T) {
	f := NewFactory(0)
	_, err := f.Build(domain.SearchResult{Title: "X", DownloadLink: "https://host/a"})
	if err != ErrNoValidatedLinks {
		t.Fatalf("expected ErrNoValidatedLinks, got %v", err)
	}
}

func TestFactoryBuildsJobFromValidatedLinks(t *testing.T) {
	f := NewFactory(0)
	result := domain.SearchResult{
		Title:          "Ubuntu 22.04",
		ReleaseName:    "ubuntu-22.04-desktop",
		Description:    "Official ISO",
		Size:           4831838208,
		SourceURL:      "https://example.com/ubuntu",
		ValidatedLinks: []string{"https://livehoster/b", "https://livehoster/c"},
	}

	job, err := f.Build(result)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if job.JobID == "" {
		t.Fatalf("expected a non-empty job id")
	}
	if job.PackageName != "Ubuntu 22.04" {
		t.Fatalf("packageName = %q, want %q", job.PackageName, "Ubuntu 22.04")
	}
	if job.Filename != "ubuntu-22.04-desktop" {
		t.Fatalf("filename = %q, want release name", job.Filename)
	}
	if len(job.Text) != 2 || job.Text[0] != "https://livehoster/b" || job.Text[1] != "https://livehoster/c" {
		t.Fatalf("unexpected text links: %v", job.Text)
	}
	if job.Comment != "Official ISO | Size: 4.5 GB | Source: https://example.com/ubuntu" {
		t.Fatalf("unexpected comment: %q", job.Comment)
	}
	if job.AutoStart != domain.TriTrue || job.Enabled != domain.TriTrue {
		t.Fatalf("expected AutoStart/Enabled defaults to TRUE")
	}
	if job.Priority != domain.PriorityDefault {
		t.Fatalf("priority = %v, want default", job.Priority)
	}
	if !job.ExpiresAt.After(job.CreatedAt) {
		t.Fatalf("expected expiry after creation")
	}
}

func TestFactoryFallsBackToDefaultPackageName(t *testing.T) {
	f := NewFactory(0)
	result := domain.SearchResult{ValidatedLinks: []string{"https://host/a"}}
	job, err := f.Build(result)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if job.PackageName != "Scavengarr Download" {
		t.Fatalf("packageName = %q, want fallback", job.PackageName)
	}
}
