// Package github classifies and rewrites GitHub resource URLs.
package github

import "regexp"

// Kind is the category of GitHub resource an embedded path refers to.
type Kind int

const (
	KindUnknown Kind = iota
	KindReleases
	KindBlob
	KindRaw
	KindInfo
	KindGist
	KindTags
)

func (k Kind) String() string {
	switch k {
	case KindReleases:
		return "releases"
	case KindBlob:
		return "blob"
	case KindRaw:
		return "raw"
	case KindInfo:
		return "info"
	case KindGist:
		return "gist"
	case KindTags:
		return "tags"
	default:
		return "unknown"
	}
}

type classifyRule struct {
	pattern *regexp.Regexp
	kind    Kind
}

// classifyRules is evaluated in order; the first match wins.
var classifyRules = []classifyRule{
	{regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/(?:releases|archive)/.*$`), KindReleases},
	{regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/blob/.*$`), KindBlob},
	{regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/raw/.*$`), KindRaw},
	{regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/(?:info|git-).*$`), KindInfo},
	{regexp.MustCompile(`(?i)^(?:https?://)?raw\.(?:githubusercontent|github)\.com/.+?/.+?/.+?/.+$`), KindRaw},
	{regexp.MustCompile(`(?i)^(?:https?://)?gist\.(?:githubusercontent|github)\.com/.+?/.+?/.+$`), KindGist},
	{regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/tags.*$`), KindTags},
}

// Classify maps an embedded path to its resource kind. Paths that match no
// rule are KindUnknown.
func Classify(path string) Kind {
	for _, r := range classifyRules {
		if r.pattern.MatchString(path) {
			return r.kind
		}
	}
	return KindUnknown
}
