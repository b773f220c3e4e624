package httpget

import "net/url"

// secretParams are query parameters never written to logs or errors.
var secretParams = []string{"appid", "apikey", "api_key", "key", "token"}

// redact masks credentials embedded in a URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "xxxxx")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
