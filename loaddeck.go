package gambit

import "github.com/bolt-foundry/gambit/deck"

// LoadDeck implements spec.md §6's `loadDeck(path) -> LoadedDeck | Error`:
// a pure re-export of the deck loader, kept here so callers depend on one
// package for every entry point rather than reaching into deck directly.
func LoadDeck(loader *deck.Loader, path string) (*deck.Deck, error) {
	return loader.LoadDeck(path)
}

// LoadCard implements spec.md §6's `loadCard(path) -> LoadedCard | Error`.
func LoadCard(loader *deck.Loader, path string) (*deck.Card, error) {
	return loader.LoadCard(path)
}
