package netflix

import "flixrank/models"

// Static stand-in rankings served when the ranking page can't be scraped at
// all. Stale-but-plausible beats an empty catalog row in the client UI.
var fallbackMovies = []string{
	"Carry-On",
	"The Adam Project",
	"Red Notice",
	"Bird Box",
	"The Gray Man",
	"Glass Onion: A Knives Out Mystery",
	"Extraction 2",
	"Damsel",
	"Leave the World Behind",
	"Society of the Snow",
}

var fallbackSeries = []string{
	"Wednesday",
	"Stranger Things",
	"Squid Game",
	"Bridgerton",
	"The Night Agent",
	"Money Heist",
	"The Witcher",
	"Dark",
	"Lupin",
	"Ozark",
}

func fallbackList(mediaType string) []models.CatalogItem {
	titles := fallbackMovies
	if mediaType == models.TypeSeries {
		titles = fallbackSeries
	}
	items := make([]models.CatalogItem, 0, len(titles))
	for _, title := range titles {
		items = append(items, models.CatalogItem{
			ID:    syntheticID(mediaType, title),
			Type:  mediaType,
			Title: title,
			Description: "Netflix Top 10 placeholder entry. Live rankings are " +
				"temporarily unavailable.",
		})
	}
	return items
}
