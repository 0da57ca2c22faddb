package zumo

import (
	"net/url"
	"strings"
)

// fragmentOf returns the raw text after the first '#' in rawURL, or "".
// The raw form is kept so that percent-escapes are decoded exactly once,
// by parseFragment.
func fragmentOf(rawURL string) string {
	i := strings.IndexByte(rawURL, '#')
	if i < 0 {
		return ""
	}

	return rawURL[i+1:]
}

// parseFragment splits a URL fragment of the form "a=1&b=2" into a map.
// A leading '#' is ignored. Pieces that do not split into exactly one key
// and one value are skipped, so a value containing a raw '=' is dropped.
// Values are query-unescaped; a value with a malformed escape is kept
// as-is. On duplicate keys the first one wins.
func parseFragment(fragment string) map[string]string {
	fragment = strings.TrimPrefix(fragment, "#")
	out := make(map[string]string)

	if fragment == "" {
		return out
	}

	for _, param := range strings.Split(fragment, "&") {
		kv := strings.Split(param, "=")
		if len(kv) != 2 {
			continue
		}

		if _, dup := out[kv[0]]; dup {
			continue
		}

		val, err := url.QueryUnescape(kv[1])
		if err != nil {
			val = kv[1]
		}

		out[kv[0]] = val
	}

	return out
}
