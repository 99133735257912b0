package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nooga/jsintrinsics/pkg/builtins"
	"github.com/nooga/jsintrinsics/pkg/vm"
)

func TestWriteEntriesHidesDisabled(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{EcmaVersion: 2019})
	rt, err := builtins.Initialize(v)
	require.NoError(t, err)
	c, ok := rt.Container("String.prototype")
	require.True(t, ok)

	var buf bytes.Buffer
	writeEntries(&buf, c, v.Realm().Options(), false)
	assert.NotContains(t, buf.String(), "matchAll")

	buf.Reset()
	writeEntries(&buf, c, v.Realm().Options(), true)
	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(l, "matchAll") {
			line = l
		}
	}
	require.NotEmpty(t, line)
	assert.Contains(t, line, "es2020,off")
	assert.Contains(t, line, "w-c")
}

func TestWriteEntriesShowsAliases(t *testing.T) {
	v := vm.NewVM(vm.RealmOptions{})
	rt, err := builtins.Initialize(v)
	require.NoError(t, err)
	c, ok := rt.Container("Set.prototype")
	require.True(t, ok)

	var buf bytes.Buffer
	writeEntries(&buf, c, v.Realm().Options(), false)
	assert.Contains(t, buf.String(), "= values")
}
