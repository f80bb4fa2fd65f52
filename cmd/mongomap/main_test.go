package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domidx "github.com/kailas-cloud/mongomap/internal/index"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"},
		{"version"},
		{"collections", "list"},
		{"collections", "drop"},
		{"indexes", "list"},
		{"indexes", "drop"},
		{"indexes", "hide"},
		{"indexes", "unhide"},
		{"search-indexes", "list"},
		{"search-indexes", "drop"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "mongomap dev")
}

func TestIndexesDrop_RequiresArgs(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"indexes", "drop", "people"})

	require.Error(t, root.Execute())
}

func TestPrintIndexes(t *testing.T) {
	ttl := time.Hour
	var out bytes.Buffer
	err := printIndexes(&out, []domidx.Info{
		{Name: "_id_", Fields: []domidx.Field{{Key: "_id", Type: domidx.FieldDefault, Direction: domidx.Asc}}},
		{
			Name: "lastname_1_age_-1",
			Fields: []domidx.Field{
				{Key: "lastname", Type: domidx.FieldDefault, Direction: domidx.Asc},
				{Key: "age", Type: domidx.FieldDefault, Direction: domidx.Desc},
			},
			Unique: true,
			Hidden: true,
		},
		{Name: "location_2dsphere", Fields: []domidx.Field{{Key: "location", Type: domidx.FieldGeo, GeoType: domidx.Geo2DSphere}}},
		{Name: "session_ttl", Fields: []domidx.Field{{Key: "at", Type: domidx.FieldDefault, Direction: domidx.Asc}}, ExpireAfter: &ttl},
	})
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "NAME")
	assert.Contains(t, s, "lastname:1,age:-1")
	assert.Contains(t, s, "unique,hidden")
	assert.Contains(t, s, "location:2dsphere")
	assert.Contains(t, s, "ttl=1h0m0s")
}

func TestPrintSearchIndexes(t *testing.T) {
	var out bytes.Buffer
	err := printSearchIndexes(&out, []domidx.SearchIndexInfo{
		{Name: "articles_vector", Type: domidx.SearchTypeVector, Status: domidx.StatusReady, Queryable: true},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "articles_vector")
	assert.Contains(t, out.String(), "vectorSearch")
	assert.Contains(t, out.String(), "READY")
}
