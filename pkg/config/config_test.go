package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[realm]
features = ["async-context"]
`))
	require.NoError(t, err)
	assert.Equal(t, vm.LatestEcmaVersion, c.Realm.EcmaVersion)
	assert.Equal(t, "en-US", c.Realm.Locale)

	opts := c.RealmOptions()
	assert.True(t, opts.HasFeature("async-context"))
	assert.False(t, opts.HasFeature("cleanup-some"))
	assert.Equal(t, vm.LatestEcmaVersion, opts.EcmaVersion)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"edition":     "[realm]\necma-version = 1999\n",
		"feature":     "[realm]\nfeatures = [\"decorators\"]\n",
		"locale":      "[realm]\nlocale = \"not a locale!\"\n",
		"unknown key": "[realm]\nstrict = true\n",
		"syntax":      "[realm\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("[realm]\nfeatures = [\"decorators\"]\n"))
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
[realm]
ecma-version = 2020
locale = "de-DE"

[log]
verbosity = 2
`), 0o644))

	c, err := FindAndLoad(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), c.Path)
	assert.Equal(t, 2020, c.Realm.EcmaVersion)
	assert.Equal(t, "de-DE", c.RealmOptions().Locale)
	assert.Equal(t, 2, c.Log.Verbosity)
}

func TestFindAndLoadWithoutFile(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, c.Path)
	assert.Equal(t, Default().Realm, c.Realm)
}
