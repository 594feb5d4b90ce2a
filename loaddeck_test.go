package gambit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/deck"
)

// mapFileSystem is the simplest possible deck.FileSystem: a fixed table of
// path -> source, enough to exercise the loader without touching disk.
type mapFileSystem map[string]string

func (m mapFileSystem) ReadFile(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", assert.AnError
	}
	return src, nil
}

func TestLoadDeckDelegatesToLoader(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		FileSystem: mapFileSystem{"agent.md": "you are a helpful agent"},
	})

	d, err := LoadDeck(loader, "agent.md")
	require.NoError(t, err)
	assert.Equal(t, "agent.md", d.Path)
	assert.True(t, d.IsRoot)
	assert.Equal(t, "you are a helpful agent", d.Body)
}

func TestLoadCardDelegatesToLoader(t *testing.T) {
	loader := deck.NewLoader(deck.Options{
		FileSystem: mapFileSystem{"snippet.md": "a reusable card"},
	})

	card, err := LoadCard(loader, "snippet.md")
	require.NoError(t, err)
	assert.Equal(t, "a reusable card", card.Body)
}

func TestLoadDeckPropagatesLoaderError(t *testing.T) {
	loader := deck.NewLoader(deck.Options{FileSystem: mapFileSystem{}})

	_, err := LoadDeck(loader, "missing.md")
	assert.Error(t, err)
}
