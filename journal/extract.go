package journal

import (
	"net/url"
	"strings"
)

// Collection names used by the extractors.
const (
	CollectionPerson       = "person"
	CollectionOriginPrefix = "origin_netloc:"
)

// Key is one value to merge into a collection.
type Key struct {
	Collection string
	Value      []byte
}

// Extractor decodes one serialized object and returns the keys it
// contributes. It only fails when the object cannot be decoded.
type Extractor func(value []byte) ([]Key, error)

// extractWith returns an Extractor decoding objects of type R before
// passing them to extract.
func extractWith[R any](extract func(*R) []Key) Extractor {
	return func(value []byte) ([]Key, error) {
		r := new(R)
		if err := Decode(value, r); err != nil {
			return nil, err
		}
		return extract(r), nil
	}
}

// ExtractRevision returns the author and the committer of the revision, when
// present, as person keys. Duplicates are left to the counters.
func ExtractRevision(r *Revision) []Key {
	var keys []Key
	if r.Author != nil {
		keys = append(keys, Key{Collection: CollectionPerson, Value: r.Author.Fullname})
	}
	if r.Committer != nil {
		keys = append(keys, Key{Collection: CollectionPerson, Value: r.Committer.Fullname})
	}
	return keys
}

// ExtractRelease returns the author of the release, if any.
func ExtractRelease(r *Release) []Key {
	if r.Author == nil {
		return nil
	}
	return []Key{{Collection: CollectionPerson, Value: r.Author.Fullname}}
}

// ExtractOrigin returns the origin URL as a key of the collection of its
// normalized network location. Origins without a network location yield
// nothing.
func (t NetlocTable) ExtractOrigin(o *Origin) []Key {
	host := netloc(o.URL)
	if host == "" {
		return nil
	}
	return []Key{{
		Collection: CollectionOriginPrefix + t.Normalize(host),
		Value:      []byte(o.URL),
	}}
}

// netloc returns the host and port of rawURL. Archived URLs are not always
// valid, so when parsing fails the authority is read directly from the text
// following "scheme://", without the userinfo. An unterminated IPv6 literal
// has no network location.
func netloc(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Host
	}
	i := strings.Index(rawURL, "://")
	if i <= 0 {
		return ""
	}
	authority := rawURL[i+len("://"):]
	if end := strings.IndexAny(authority, "/?#"); end >= 0 {
		authority = authority[:end]
	}
	if at := strings.LastIndexByte(authority, '@'); at >= 0 {
		authority = authority[at+1:]
	}
	if strings.Contains(authority, "[") != strings.Contains(authority, "]") {
		return ""
	}
	return authority
}

// Extractors returns the extractor of every supported object type.
func (t NetlocTable) Extractors() map[string]Extractor {
	return map[string]Extractor{
		TypeOrigin:   extractWith(t.ExtractOrigin),
		TypeRevision: extractWith(ExtractRevision),
		TypeRelease:  extractWith(ExtractRelease),
	}
}
