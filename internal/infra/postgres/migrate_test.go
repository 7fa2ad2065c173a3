package postgres

import (
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init.sql", true, 1, "init"},
		{"0012_match_document_chunks.sql", true, 12, "match_document_chunks"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("CREATE TABLE test (id INTEGER);"))
	b := Checksum([]byte("CREATE TABLE test (id INTEGER);"))
	c := Checksum([]byte("CREATE TABLE different (id INTEGER);"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("SELECT 2;")},
		"0001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("notes")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "SELECT 1;", migrations[0].SQL)
	assert.Equal(t, Checksum([]byte("SELECT 1;")), migrations[0].Checksum)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 2;")},
	}

	_, err := LoadMigrations(fsys)
	assert.ErrorContains(t, err, "version 0001")
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotEmpty(t, m.SQL)
	}
	assert.Contains(t, migrations[0].SQL, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, migrations[1].SQL, "match_document_chunks")
}

func TestEmbeddedMigrations_MatchDocumentChunksSignature(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)

	var sql string
	for _, m := range migrations {
		if m.Name == "match_document_chunks" {
			sql = m.SQL
		}
	}
	require.NotEmpty(t, sql)

	sig := regexp.MustCompile(`(?s)match_document_chunks\(\s*` +
		`query_embedding\s+vector\(768\),\s*` +
		`match_document_id\s+TEXT,\s*` +
		`match_user_id\s+TEXT,\s*` +
		`match_threshold\s+DOUBLE PRECISION,\s*` +
		`match_count\s+INTEGER\s*\)`)
	assert.Regexp(t, sig, sql)
	assert.NotContains(t, sql, "filter_")
}
