package releaseparse

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/IncSW/go-bencode"
)

// ErrNoInfoDict is returned by InfoHashFromTorrent when the payload
// bencode-decodes cleanly but carries no top-level "info" key.
var ErrNoInfoDict = errors.New("releaseparse: torrent payload has no info dict")

// InfoHashFromTorrent computes the BitTorrent info-hash (the lowercase hex
// SHA-1 of the bencoded "info" dict) of a .torrent metainfo file body.
// This is used purely as a cross-plugin dedup key for bittorrent-style
// indexer adapters (a Torznab indexer whose enclosure is a .torrent file
// rather than a direct HTTP download). The hash is never assembled into
// a magnet URI.
func InfoHashFromTorrent(payload []byte) (string, error) {
	decoded, err := bencode.Unmarshal(payload)
	if err != nil {
		return "", fmt.Errorf("releaseparse: decode torrent: %w", err)
	}
	root, ok := decoded.(map[string]interface{})
	if !ok {
		return "", errors.New("releaseparse: torrent payload is not a dict")
	}
	info, ok := root["info"]
	if !ok {
		return "", ErrNoInfoDict
	}

	reencoded, err := bencode.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("releaseparse: re-encode info dict: %w", err)
	}
	sum := sha1.Sum(reencoded)
	return hex.EncodeToString(sum[:]), nil
}
