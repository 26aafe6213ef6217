// Package releaseparse turns a scraped release name into the structured
// quality/codec/language/season/episode metadata the stream use case
// scores on, plus the token sets its fuzzy title matching runs over.
package releaseparse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/strob0t/scavengarr/internal/domain"
)

var (
	tokenPattern          = regexp.MustCompile(`[\p{L}\p{N}]+`)
	yearPattern           = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	seasonEpisodePattern  = regexp.MustCompile(`(?i)s\s*(\d{1,2})\s*e\s*(\d{1,3})`)
	seasonXEpisodePattern = regexp.MustCompile(`(?i)(\d{1,2})x(\d{1,3})`)
)

// Meta is a parsed release name, used both to enrich a SearchResult and
// to build the token set the stream use case's fuzzy title score runs on.
type Meta struct {
	Normalized string
	TokenSet   map[string]struct{}
	Year       int
	Season     int
	Episode    int
}

// ParseTitle tokenizes a raw title/release name for fuzzy matching: lower
// cased, Cyrillic-transliterated tokens, with year/season/episode and
// resolution/codec noise stripped out, so two differently-formatted
// releases of the same title produce overlapping token sets.
func ParseTitle(raw string) Meta {
	input := strings.ToLower(strings.TrimSpace(raw))
	meta := Meta{TokenSet: make(map[string]struct{})}
	if input == "" {
		return meta
	}

	meta.Year = extractYear(input)
	meta.Season, meta.Episode = extractSeasonEpisode(input)

	var kept []string
	for _, token := range tokenPattern.FindAllString(input, -1) {
		if _, stop := stopwordTokens[token]; stop {
			continue
		}
		if isResolutionToken(token) {
			continue
		}
		if numeric, err := strconv.Atoi(token); err == nil {
			if (meta.Year > 0 && numeric == meta.Year) ||
				(meta.Season > 0 && numeric == meta.Season) ||
				(meta.Episode > 0 && numeric == meta.Episode) {
				continue
			}
		}
		meta.TokenSet[token] = struct{}{}
		kept = append(kept, token)
		if translit := transliterateCyrillic(token); translit != "" && translit != token {
			meta.TokenSet[translit] = struct{}{}
		}
	}
	meta.Normalized = strings.Join(kept, " ")
	return meta
}

// Enrich parses a release name into domain.SearchEnrichment: quality,
// codec, source, language, and series/season/episode fields.
func Enrich(releaseName string) domain.SearchEnrichment {
	lower := strings.ToLower(strings.TrimSpace(releaseName))
	meta := ParseTitle(releaseName)

	enrichment := domain.SearchEnrichment{
		Quality:  detectResolution(lower),
		Codec:    detectCodec(lower),
		Source:   detectSource(lower),
		Language: detectLanguage(lower),
		Season:   meta.Season,
		Episode:  meta.Episode,
		Year:     meta.Year,
	}
	enrichment.IsSeries = meta.Season > 0 || meta.Episode > 0 ||
		strings.Contains(lower, "season") || strings.Contains(lower, "episode")
	return enrichment
}

// HosterGuess infers a hoster name from a download URL's host, stripping
// a leading "www." and the public suffix, for use as the plugin-provided
// hoster hint the resolver registry consults when domain matching misses.
func HosterGuess(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Host, "www."))
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return parts[len(parts)-2]
}

func extractYear(input string) int {
	best := 0
	for _, match := range yearPattern.FindAllStringSubmatch(input, -1) {
		if value, err := strconv.Atoi(match[1]); err == nil && value > best {
			best = value
		}
	}
	return best
}

func extractSeasonEpisode(input string) (int, int) {
	if m := seasonEpisodePattern.FindStringSubmatch(input); len(m) >= 3 {
		return atoiOrZero(m[1]), atoiOrZero(m[2])
	}
	if m := seasonXEpisodePattern.FindStringSubmatch(input); len(m) >= 3 {
		return atoiOrZero(m[1]), atoiOrZero(m[2])
	}
	return 0, 0
}

func atoiOrZero(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func isResolutionToken(token string) bool {
	if len(token) < 3 || len(token) > 5 || !strings.HasSuffix(token, "p") {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSuffix(token, "p"))
	return err == nil
}

func detectResolution(lower string) string {
	switch {
	case strings.Contains(lower, "2160p"), strings.Contains(lower, "4k"):
		return "2160p"
	case strings.Contains(lower, "1080p"):
		return "1080p"
	case strings.Contains(lower, "720p"):
		return "720p"
	case strings.Contains(lower, "480p"):
		return "480p"
	case strings.Contains(lower, "cam"):
		return "CAM"
	default:
		return ""
	}
}

func detectCodec(lower string) string {
	switch {
	case strings.Contains(lower, "av1"):
		return "AV1"
	case strings.Contains(lower, "x265"), strings.Contains(lower, "h265"), strings.Contains(lower, "hevc"):
		return "H.265"
	case strings.Contains(lower, "x264"), strings.Contains(lower, "h264"):
		return "H.264"
	default:
		return ""
	}
}

func detectSource(lower string) string {
	switch {
	case strings.Contains(lower, "bluray"):
		return "BluRay"
	case strings.Contains(lower, "bdrip"):
		return "BDRip"
	case strings.Contains(lower, "web-dl"), strings.Contains(lower, "webdl"):
		return "WEB-DL"
	case strings.Contains(lower, "webrip"):
		return "WEBRip"
	case strings.Contains(lower, "dvdrip"):
		return "DVDRip"
	case strings.Contains(lower, "cam"):
		return "CAM"
	default:
		return ""
	}
}

func detectLanguage(lower string) string {
	for _, token := range tokenPattern.FindAllString(lower, -1) {
		switch token {
		case "de", "ger", "german", "deutsch":
			return "de"
		case "en", "eng", "english":
			return "en"
		case "multi", "multiaudio", "multilang":
			return "multi"
		}
	}
	return ""
}

func transliterateCyrillic(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if mapped, ok := cyrillicToLatin[r]; ok {
			b.WriteString(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ж': "zh", 'з': "z",
	'и': "i", 'й': "i", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p",
	'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "sch", 'ы': "y", 'э': "e", 'ю': "yu", 'я': "ya",
}

var stopwordTokens = map[string]struct{}{
	"1080p": {}, "2160p": {}, "720p": {}, "480p": {}, "4k": {},
	"x264": {}, "h264": {}, "x265": {}, "h265": {}, "hevc": {}, "av1": {},
	"hdr": {}, "webrip": {}, "web": {}, "webdl": {}, "web-dl": {},
	"bluray": {}, "bdrip": {}, "dvdrip": {}, "camrip": {}, "remux": {}, "cam": {},
	"aac": {}, "ac3": {}, "dts": {}, "mp3": {}, "flac": {},
	"de": {}, "ger": {}, "german": {}, "deutsch": {}, "en": {}, "eng": {}, "english": {},
	"multi": {}, "multiaudio": {}, "multilang": {},
	"mkv": {}, "mp4": {}, "avi": {}, "proper": {}, "repack": {},
	"season": {}, "episode": {}, "ep": {}, "s": {}, "e": {},
}
