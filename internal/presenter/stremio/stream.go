package stremio

import (
	"fmt"

	"github.com/strob0t/scavengarr/internal/domain"
)

// RenderStreams converts ranked stream candidates into the Stremio wire
// shape. A candidate the stream use case already resolved eagerly
// (DirectURL set) carries a direct URL and behaviorHints built from its
// resolved headers; everything else points at the lazy-resolution
// endpoint under its PlayURL id, the same id the stream use case stored
// in its pending cache.
func RenderStreams(baseURL string, candidates []domain.RankedStream) domain.StremioStreamResponse {
	resp := domain.StremioStreamResponse{}
	for _, c := range candidates {
		stream := domain.StremioStream{
			Title: streamTitle(c),
		}
		if c.DirectURL != "" {
			stream.URL = c.DirectURL
			stream.BehaviorHints = domain.StreamBehaviorHints{
				NotWebReady: c.NotWebReady,
			}
			if c.ProxyHeaders.Referer != "" || c.ProxyHeaders.UserAgent != "" {
				req := make(map[string]string, 2)
				if c.ProxyHeaders.Referer != "" {
					req["Referer"] = c.ProxyHeaders.Referer
				}
				if c.ProxyHeaders.UserAgent != "" {
					req["User-Agent"] = c.ProxyHeaders.UserAgent
				}
				stream.BehaviorHints.ProxyHeaders = &domain.StreamProxyHeaders{Request: req}
			}
		} else if c.PlayURL != "" {
			stream.URL = fmt.Sprintf("%s/stremio/play/%s", baseURL, c.PlayURL)
		} else {
			// Neither resolved nor registered for lazy resolution (its
			// pending store failed); a dead play URL would just 404.
			continue
		}
		resp.Streams = append(resp.Streams, stream)
	}
	return resp
}

func streamTitle(c domain.RankedStream) string {
	title := c.ReleaseName
	if title == "" {
		title = c.Title
	}
	if c.Quality != "" {
		title = fmt.Sprintf("%s\n%s", title, c.Quality)
	}
	if c.Hoster != "" {
		title = fmt.Sprintf("%s [%s]", title, c.Hoster)
	}
	return title
}
