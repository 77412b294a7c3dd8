package github

import "regexp"

// domainPatterns decides whether a redirect target stays inside the proxy.
// It is kept separate from classifyRules on purpose: the two tables answer
// different questions and are allowed to disagree.
var domainPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/(?:releases|archive)/.*$`),
	regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/(?:blob|raw)/.*$`),
	regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/(?:info|git-).*$`),
	regexp.MustCompile(`(?i)^(?:https?://)?raw\.(?:githubusercontent|github)\.com/.+?/.+?/.+?/.+$`),
	regexp.MustCompile(`(?i)^(?:https?://)?gist\.(?:githubusercontent|github)\.com/.+?/.+?/.+$`),
	regexp.MustCompile(`(?i)^(?:https?://)?github\.com/.+?/.+?/tags.*$`),
}

// IsGitHubDomain reports whether rawURL belongs to a GitHub resource the proxy
// knows how to serve.
func IsGitHubDomain(rawURL string) bool {
	for _, p := range domainPatterns {
		if p.MatchString(rawURL) {
			return true
		}
	}
	return false
}
