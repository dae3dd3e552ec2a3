package dispatch

import "strings"

// ParseRequest splits the comma-separated apps value into the ordered batch
// request. Surrounding whitespace is trimmed; case is preserved. Absent or
// blank input, or a blank element, is a configuration error.
func ParseRequest(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, configurationError("missing %q parameter", "apps")
	}

	parts := strings.Split(raw, ",")
	apps := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, configurationError("apps[%d] is empty in %q", i, raw)
		}
		apps = append(apps, p)
	}
	return apps, nil
}
