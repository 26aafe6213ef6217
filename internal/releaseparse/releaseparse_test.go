package releaseparse

import (
	"bytes"
	"encoding/hex"
	"testing"

	"crypto/sha1"

	"github.com/IncSW/go-bencode"
)

func TestEnrichQualityAndLanguage(t *testing.T) {
	enrichment := Enrich("Iron.Man.2008.German.1080p.BluRay.x264")
	if enrichment.Quality != "1080p" {
		t.Fatalf("quality = %q, want 1080p", enrichment.Quality)
	}
	if enrichment.Source != "BluRay" {
		t.Fatalf("source = %q, want BluRay", enrichment.Source)
	}
	if enrichment.Codec != "H.264" {
		t.Fatalf("codec = %q, want H.264", enrichment.Codec)
	}
	if enrichment.Language != "de" {
		t.Fatalf("language = %q, want de", enrichment.Language)
	}
	if enrichment.Year != 2008 {
		t.Fatalf("year = %d, want 2008", enrichment.Year)
	}
	if enrichment.IsSeries {
		t.Fatalf("expected a movie, not a series")
	}
}

func TestEnrichSeriesSeasonEpisode(t *testing.T) {
	enrichment := Enrich("Some.Show.S02E07.720p.WEB-DL")
	if !enrichment.IsSeries {
		t.Fatalf("expected series")
	}
	if enrichment.Season != 2 || enrichment.Episode != 7 {
		t.Fatalf("season/episode = %d/%d, want 2/7", enrichment.Season, enrichment.Episode)
	}
	if enrichment.Source != "WEB-DL" {
		t.Fatalf("source = %q, want WEB-DL", enrichment.Source)
	}
}

func TestParseTitleTokenOverlap(t *testing.T) {
	a := ParseTitle("Iron Man 2008 1080p BluRay x264")
	b := ParseTitle("Iron Man 2008 CAM")
	if _, ok := a.TokenSet["iron"]; !ok {
		t.Fatalf("expected token 'iron' in %v", a.TokenSet)
	}
	if _, ok := b.TokenSet["man"]; !ok {
		t.Fatalf("expected token 'man' in %v", b.TokenSet)
	}
	if a.Year != 2008 || b.Year != 2008 {
		t.Fatalf("expected both years to parse as 2008, got %d and %d", a.Year, b.Year)
	}
}

func TestHosterGuess(t *testing.T) {
	if got := HosterGuess("https://streamtape.com/e/abc123"); got != "streamtape" {
		t.Fatalf("hoster guess = %q, want streamtape", got)
	}
	if got := HosterGuess("not a url"); got != "" {
		t.Fatalf("hoster guess = %q, want empty", got)
	}
}

func TestInfoHashFromTorrentMatchesSHA1OfInfoDict(t *testing.T) {
	info := map[string]interface{}{
		"name":         []byte("ubuntu-22.04-desktop-amd64.iso"),
		"length":       int64(4831838208),
		"piece length": int64(262144),
		"pieces":       bytes.Repeat([]byte{0xab}, 20),
	}
	payload, err := bencode.Marshal(map[string]interface{}{
		"announce": []byte("https://tracker.example/announce"),
		"info":     info,
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	encodedInfo, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info dict: %v", err)
	}
	sum := sha1.Sum(encodedInfo)
	want := hex.EncodeToString(sum[:])

	got, err := InfoHashFromTorrent(payload)
	if err != nil {
		t.Fatalf("info hash: %v", err)
	}
	if got != want {
		t.Fatalf("info hash = %q, want %q", got, want)
	}
}

func TestInfoHashFromTorrentRejectsPayloadWithoutInfoDict(t *testing.T) {
	payload, err := bencode.Marshal(map[string]interface{}{
		"announce": []byte("https://tracker.example/announce"),
	})
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if _, err := InfoHashFromTorrent(payload); err == nil {
		t.Fatalf("expected an error for a torrent payload with no info dict")
	}
}
