package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	env := map[string]string{"HOST": "db", "EMPTY": "", "PASS": "p$w{d}"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cases := map[string]string{
		"uri: ${HOST}":             "uri: db",
		"uri: ${MISSING}":          "uri: ",
		"port: ${PORT:-8080}":      "port: 8080",
		"name: ${EMPTY:-fallback}": "name: fallback",
		"pw: ${PASS}":              "pw: p$w{d}",
		"literal: $HOST":           "literal: $HOST",
		"two: ${HOST}:${PORT:-1}":  "two: db:1",
	}
	for in, want := range cases {
		out, err := interpolate([]byte(in), lookup)
		require.NoError(t, err, in)
		assert.Equal(t, want, string(out), in)
	}
}

func TestInterpolate_Required(t *testing.T) {
	lookup := func(string) (string, bool) { return "", false }

	_, err := interpolate([]byte("a: ${A:?}\nb: ${B:?need b}"), lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "${A}: required")
	assert.Contains(t, err.Error(), "${B}: need b")
}
