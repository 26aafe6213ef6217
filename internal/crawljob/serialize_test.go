package crawljob

import (
	"strings"
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	job := domain.CrawlJob{
		JobID:                "job-1",
		Text:                 []string{"https://host/a", "https://host/b"},
		PackageName:          "Ubuntu 22.04",
		Comment:              "scavengarr",
		AutoStart:            domain.TriTrue,
		Enabled:              domain.TriTrue,
		Priority:             domain.PriorityHigh,
		ExtractAfterDownload: domain.TriFalse,
		Chunks:               4,
		ExtractPasswords:     []string{"secret"},
	}

	raw := Serialize(job)
	if !strings.Contains(string(raw), "text=https://host/a\r\nhttps://host/b\r\n") {
		t.Fatalf("expected CRLF-joined text entry, got: %s", raw)
	}

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed.Text) != 2 || parsed.Text[0] != "https://host/a" || parsed.Text[1] != "https://host/b" {
		t.Fatalf("unexpected text links: %v", parsed.Text)
	}
	if parsed.PackageName != job.PackageName {
		t.Fatalf("packageName = %q, want %q", parsed.PackageName, job.PackageName)
	}
	if parsed.AutoStart != domain.TriTrue {
		t.Fatalf("autoStart = %v, want TriTrue", parsed.AutoStart)
	}
	if parsed.Enabled != domain.TriTrue {
		t.Fatalf("enabled = %v, want TriTrue", parsed.Enabled)
	}
	if parsed.Priority != domain.PriorityHigh {
		t.Fatalf("priority = %q, want %q", parsed.Priority, domain.PriorityHigh)
	}
	if parsed.ExtractAfterDownload != domain.TriFalse {
		t.Fatalf("extractAfterDownload = %v, want TriFalse", parsed.ExtractAfterDownload)
	}
	if parsed.Chunks != 4 {
		t.Fatalf("chunks = %d, want 4", parsed.Chunks)
	}
	if len(parsed.ExtractPasswords) != 1 || parsed.ExtractPasswords[0] != "secret" {
		t.Fatalf("extractPasswords = %v, want [secret]", parsed.ExtractPasswords)
	}
}

func TestParseIgnoresUnknownKeysAndComments(t *testing.T) {
	raw := []byte("# a comment\r\npackageName=Foo\r\nunknownKey=bar\r\nenabled=TRUE\r\n")
	job, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if job.PackageName != "Foo" {
		t.Fatalf("packageName = %q, want Foo", job.PackageName)
	}
	if job.Enabled != domain.TriTrue {
		t.Fatalf("enabled = %v, want TriTrue", job.Enabled)
	}
}

func TestSerializeOmitsUnsetOptionalFields(t *testing.T) {
	job := domain.CrawlJob{
		Text:        []string{"https://host/a"},
		PackageName: "Foo",
	}
	raw := string(Serialize(job))
	for _, key := range []string{"autoConfirm=", "forcedStart=", "extractAfterDownload=", "chunks=", "downloadFolder="} {
		if strings.Contains(raw, key) {
			t.Fatalf("expected %q to be omitted from serialized output, got: %s", key, raw)
		}
	}
}
