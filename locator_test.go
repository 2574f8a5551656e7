package blobio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blobio"
)

var badPaths = []string{
	"azfs://",
	"azfs://storage-account/",
	"azfs://storage-account/**",
	"azfs://storage-account/**/*",
	"azfs://container",
	"azfs:///name",
	"azfs:///",
	"azfs:/blah/container/name",
	"azfs://ab/container/name",
	"azfs://accountwithmorethan24chars/container/name",
	"azfs://***/container/name",
	"azfs://storageaccount/my--container/name",
	"azfs://storageaccount/CONTAINER/name",
	"azfs://storageaccount/ct/name",
	"s3://storageaccount/container/name",
}

func TestParseLocator(t *testing.T) {
	loc, err := blobio.ParseLocator("azfs://storageaccount/container/name", false)
	require.NoError(t, err)
	assert.Equal(t, blobio.Locator{Account: "storageaccount", Container: "container", Key: "name"}, loc)

	loc, err = blobio.ParseLocator("azfs://storageaccount/container/name/sub", false)
	require.NoError(t, err)
	assert.Equal(t, "name/sub", loc.Key)
	assert.Equal(t, "azfs://storageaccount/container/name/sub", loc.String())
	assert.Equal(t, "azfs://storageaccount/container/", loc.ContainerPath())
	assert.Equal(t, "other", loc.WithKey("other").Key)
}

func TestParseLocator_KeyOptional(t *testing.T) {
	_, err := blobio.ParseLocator("azfs://storageaccount/container/", false)
	assert.ErrorIs(t, err, blobio.ErrInvalidPath)

	loc, err := blobio.ParseLocator("azfs://storageaccount/container/", true)
	require.NoError(t, err)
	assert.Empty(t, loc.Key)

	loc, err = blobio.ParseLocator("azfs://storageaccount/container/name", true)
	require.NoError(t, err)
	assert.Equal(t, "name", loc.Key)
}

func TestParseLocator_BadPaths(t *testing.T) {
	for _, p := range badPaths {
		t.Run(p, func(t *testing.T) {
			for _, optional := range []bool{false, true} {
				_, err := blobio.ParseLocator(p, optional)

				var pe *blobio.InvalidPathError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, p, pe.Path)
				assert.Equal(t, blobio.KindInvalidPath, blobio.Classify(err))
			}
		})
	}
}

func TestMustParseLocator_Panics(t *testing.T) {
	assert.Panics(t, func() { blobio.MustParseLocator("azfs://ab/container/name") })
}

func TestJoin(t *testing.T) {
	want := "azfs://account-name/container/path/to/file"

	assert.Equal(t, want, blobio.Join("azfs://account-name/container/path", "to", "file"))
	assert.Equal(t, want, blobio.Join("azfs://account-name/container/path", "to/file"))
	assert.Equal(t, want, blobio.Join("azfs://account-name/container/path", "/to/file"))
	assert.Equal(t, want, blobio.Join("azfs://account-name/container/path/", "to/file"))
	assert.Equal(t, "azfs://account-name/container/path", blobio.Join("azfs://account-name/container/path"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		name   string
	}{
		{"azfs://foo/bar/baz", "azfs://foo/bar", "baz"},
		{"azfs://foo/", "azfs://foo", ""},
		{"azfs://foo", "azfs://foo", ""},
		{"azfs://account/container/a/b.txt", "azfs://account/container/a", "b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			parent, name, err := blobio.Split(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.parent, parent)
			assert.Equal(t, tt.name, name)
		})
	}

	_, _, err := blobio.Split("/tmp/foo")
	assert.ErrorIs(t, err, blobio.ErrInvalidPath)
}
