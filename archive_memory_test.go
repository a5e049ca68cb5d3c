// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package export_test

import (
	"errors"
	"testing"

	export "github.com/hashicorp/go-export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArchiveAdd(t *testing.T) {
	a := export.NewMemoryArchive("app")
	require.NoError(t, a.AddDirectory("conf"))
	require.NoError(t, a.AddBytes("conf/app.yaml", []byte("port: 80")))
	require.NoError(t, a.AddArchive("lib/inner.jar", export.NewMemoryArchive("inner.jar")))

	nodes, err := a.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, export.KindDirectory, nodes[0].Kind)
	assert.Equal(t, export.KindAsset, nodes[1].Kind)
	assert.Equal(t, export.KindNestedArchive, nodes[2].Kind)
	assert.Equal(t, "lib/inner.jar", nodes[2].Path.String())

	// the returned slice is a copy
	nodes[0] = export.Node{}
	again, err := a.Nodes()
	require.NoError(t, err)
	assert.Equal(t, "conf", again[0].Path.String())
}

func TestMemoryArchiveAddErrors(t *testing.T) {
	a := export.NewMemoryArchive("app")
	require.NoError(t, a.AddBytes("a.txt", nil))

	cases := []struct {
		name string
		add  func() error
	}{
		{name: "duplicate path", add: func() error { return a.AddDirectory("a.txt") }},
		{name: "root", add: func() error { return a.AddBytes("/", nil) }},
		{name: "parent reference", add: func() error { return a.AddBytes("../a.txt", nil) }},
		{name: "nil source", add: func() error { return a.AddAsset("b.txt", nil) }},
		{name: "nil archive", add: func() error { return a.AddArchive("c.jar", nil) }},
		{name: "unknown kind", add: func() error { return a.Add(export.Node{Path: export.MustPath("d"), Kind: export.NodeKind(9)}) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.add()
			require.Error(t, err)
			assert.True(t, errors.Is(err, export.ErrInvalidPath))
		})
	}
}
