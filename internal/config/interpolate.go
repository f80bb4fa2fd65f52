package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// interpolate expands ${VAR}, ${VAR:-default} and ${VAR:?message} in data. An unset or empty
// VAR with :? fails with message; plain ${VAR} expands to "".
func interpolate(data []byte, lookup func(string) (string, bool)) ([]byte, error) {
	var errs []error
	out := refPattern.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := refPattern.FindSubmatch(ref)
		name, op, arg := string(m[1]), string(m[2]), string(m[3])
		if v, ok := lookup(name); ok && v != "" {
			return []byte(v)
		}
		switch op {
		case ":-":
			return []byte(arg)
		case ":?":
			msg := strings.TrimSpace(arg)
			if msg == "" {
				msg = "required"
			}
			errs = append(errs, fmt.Errorf("${%s}: %s", name, msg))
		}
		return nil
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
