package fetcher

// Item identifies one unit of work: the subject a fetcher should retrieve.
// The key is passed to the fetcher as-is and is used to derive the storage key.
type Item struct {
	// Key is the subject identifier, e.g. a ticker symbol ("AAPL")
	// or an exchange-rate base currency ("USD").
	Key string
}

// Items builds work items from subject keys, preserving their order
func Items(keys ...string) []Item {
	items := make([]Item, len(keys))
	for i, k := range keys {
		items[i] = Item{Key: k}
	}
	return items
}
