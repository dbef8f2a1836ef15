// Package query builds the outbound query string from an inbound request.
// Only whitelisted keys survive; their values are forwarded exactly as
// received. The external service owns validation, so nothing is trimmed,
// coerced or rejected here.
package query

import (
	"net/url"
	"strings"
)

// Parse decodes a raw query string like url.ParseQuery, except that a key
// or value with a broken escape is kept as the literal text that was sent
// instead of being dropped. Pairs are split on '&' only.
func Parse(rawQuery string) url.Values {
	vals := url.Values{}
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescapeOrRaw(key)
		vals[key] = append(vals[key], unescapeOrRaw(value))
	}
	return vals
}

func unescapeOrRaw(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// Translate copies the whitelisted keys of in into a new url.Values. All
// values of a key are kept in their original order. A key sent with an
// empty value stays present with an empty value; an absent key stays absent.
func Translate(in url.Values, allowed []string) url.Values {
	out := url.Values{}
	for _, key := range allowed {
		vals, ok := in[key]
		if !ok {
			continue
		}
		out[key] = append([]string(nil), vals...)
	}
	return out
}

// Encode renders translated values as a raw query string. Keys are sorted,
// which is fine because parameter order carries no meaning upstream.
func Encode(vals url.Values) string {
	if len(vals) == 0 {
		return ""
	}
	return vals.Encode()
}

// Dropped returns the inbound keys Translate discarded. Used for debug logging.
func Dropped(in url.Values, allowed []string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		keep[k] = struct{}{}
	}
	var dropped []string
	for k := range in {
		if _, ok := keep[k]; !ok {
			dropped = append(dropped, k)
		}
	}
	return dropped
}
