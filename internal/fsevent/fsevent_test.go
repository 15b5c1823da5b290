package fsevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslatePreservesOrderAndBits(t *testing.T) {
	paths := []string{"/w/a.txt", "/w/b", "/w/c.lnk"}
	flags := []Flags{
		FlagItemCreated | FlagItemIsFile,
		FlagItemRemoved | FlagItemIsDir | 0x80000000,
		FlagItemRenamed | FlagItemIsSymlink | FlagItemInodeMeta,
	}
	ids := []uint64{7, 8, 42}

	events := Translate(paths, flags, ids)

	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, paths[i], ev.Path)
		assert.Equal(t, flags[i], ev.Flags, "flags must be copied bit for bit")
		assert.Equal(t, ids[i], ev.ID)
	}
}

func TestTranslateEmptyBatch(t *testing.T) {
	events := Translate(nil, nil, nil)
	assert.Empty(t, events)
}

func TestFlagsNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"none"}, FlagNone.Names())
	assert.Equal("created|is-file", (FlagItemCreated | FlagItemIsFile).String())
	assert.Equal([]string{"removed", "0x80000000"}, (FlagItemRemoved | 0x80000000).Names())
	assert.True((FlagItemCreated | FlagItemIsFile).Has(FlagItemIsFile))
	assert.False(FlagItemCreated.Has(FlagItemCreated | FlagItemIsFile))
}

func TestParseFlagsRoundTrip(t *testing.T) {
	for _, fn := range FlagNames() {
		got, err := ParseFlags([]string{fn.Name})
		require.NoError(t, err)
		assert.Equal(t, fn.Flag, got, fn.Name)
	}

	_, err := ParseFlags([]string{"exploded"})
	assert.ErrorIs(t, err, ErrUnknownFlag)
}

func TestParseCreateFlags(t *testing.T) {
	mask, err := ParseCreateFlags([]string{"file-events", " watch-root", ""})
	require.NoError(t, err)
	assert.Equal(t, CreateFileEvents|CreateWatchRoot, mask)
	assert.Equal(t, []string{"watch-root", "file-events"}, mask.Names())
	assert.Equal(t, "none", CreateNone.String())

	_, err = ParseCreateFlags([]string{"everything"})
	assert.ErrorIs(t, err, ErrUnknownFlag)
}
