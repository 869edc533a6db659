package pipeline

import "net/url"

// ExtractDomain returns the host of a page URL, or the fallback when
// the URL cannot be parsed or has no host.
func ExtractDomain(rawURL, fallback string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fallback
	}
	return parsed.Hostname()
}

// ExtractPath strips the query and fragment from a page URL and returns
// its path component. Malformed URLs fall back to the raw string so a
// bad page value never fails the batch.
func ExtractPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.Path == "" {
		if parsed.Host != "" {
			return "/"
		}
		return rawURL
	}
	return parsed.Path
}
