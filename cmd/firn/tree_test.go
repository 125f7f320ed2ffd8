package main

import (
	"bytes"
	"testing"
	"text/tabwriter"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/firnlab/firn/pkg/masked"
	"github.com/firnlab/firn/pkg/repo"
)

func TestExpandToAndPrintTree(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/survey/season1", 0o755))
	require.NoError(t, util.WriteFile(fs, "/survey/season1/notes.txt", []byte("field notes"), 0o644))

	store := repo.NewStore(fs, nil)
	handle := store.Load("/survey")
	it, err := store.Resolve(handle)
	require.NoError(t, err)

	expandTo(store, it, 2)

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	printTree(w, it, 0)
	require.NoError(t, w.Flush())

	out := buf.String()
	require.Contains(t, out, "survey")
	require.Contains(t, out, "season1")
	require.Contains(t, out, "notes.txt")
	// Depth 2 expands the directory and its subdirectory, so the file
	// leaf is indented two levels deep.
	require.Contains(t, out, "    notes.txt")
}

func TestAllAxes(t *testing.T) {
	buf, err := masked.NewFloat64([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	it := repo.FromValue("grid", masked.New(buf, nil))
	require.Equal(t, ":, :", allAxes(it))

	scalar := repo.FromValue("pi", 3.14)
	require.Equal(t, "", allAxes(scalar))
}
