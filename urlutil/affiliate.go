package urlutil

import "net/url"

// WithAffiliateTag rewrites rawURL so it carries exactly one tag=<affiliateID>
// query parameter. An existing tag parameter is replaced, all other query
// parameters and path segments are preserved, and applying the transform twice
// yields the same URL as applying it once. URLs that cannot be parsed, and
// empty tags, pass through untouched.
func WithAffiliateTag(rawURL, affiliateID string) string {
	if rawURL == "" || affiliateID == "" {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	q.Set("tag", affiliateID)
	u.RawQuery = q.Encode()
	return u.String()
}
