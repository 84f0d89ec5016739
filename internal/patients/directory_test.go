package patients

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucid/internal/errors"
)

func writeDB(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileDirectoryLookup(t *testing.T) {
	path := writeDB(t, `[
		{"account_id": "6211C", "first_name": "Jane", "last_name": "Roe", "tier": "active", "is_dnc": false},
		{"account_id": "9404D", "first_name": "John", "last_name": "Doe", "is_dnc": true}
	]`)

	dir, err := NewFileDirectory(path)
	require.NoError(t, err)

	jane, err := dir.Lookup("6211C")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", jane.FullName())
	assert.False(t, jane.IsDNC)

	john, err := dir.Lookup("9404D")
	require.NoError(t, err)
	assert.True(t, john.IsDNC)

	_, err = dir.Lookup("0000X")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CategoryNotFound))
}

func TestFileDirectoryMissingFileIsEmpty(t *testing.T) {
	dir, err := NewFileDirectory(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	_, err = dir.Lookup("6211C")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CategoryNotFound))
}

func TestFileDirectoryMalformedFile(t *testing.T) {
	path := writeDB(t, `{"not": "an array"}`)
	_, err := NewFileDirectory(path)
	assert.Error(t, err)
}

func TestFileDirectoryReload(t *testing.T) {
	path := writeDB(t, `[{"account_id": "6211C", "first_name": "Jane", "last_name": "Roe"}]`)
	dir, err := NewFileDirectory(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[
		{"account_id": "6211C", "first_name": "Jane", "last_name": "Roe", "is_dnc": true}
	]`), 0644))
	require.NoError(t, dir.Reload())

	jane, err := dir.Lookup("6211C")
	require.NoError(t, err)
	assert.True(t, jane.IsDNC)
}

func TestFullNameTrims(t *testing.T) {
	assert.Equal(t, "Jane Roe", (&Patient{FirstName: "Jane", LastName: "Roe"}).FullName())
	assert.Equal(t, "Jane", (&Patient{FirstName: "Jane"}).FullName())
	assert.Equal(t, "Roe", (&Patient{LastName: "Roe"}).FullName())
	assert.Equal(t, "", (&Patient{}).FullName())
}

func TestStaticDirectory(t *testing.T) {
	dir := StaticDirectory{"6211C": {AccountID: "6211C", FirstName: "Jane"}}

	p, err := dir.Lookup("6211C")
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.FirstName)

	_, err = dir.Lookup("9404D")
	assert.True(t, errors.Is(err, errors.CategoryNotFound))
}
