package gallery

import "memeatlas/models"

// Level names the ladder step that produced a result.
type Level string

const (
	LevelCity    Level = "city"
	LevelRegion  Level = "region"
	LevelCountry Level = "country"
	LevelGlobal  Level = "global"
	LevelEmpty   Level = "empty"
)

type rung struct {
	level    Level
	criteria string
	field    func(models.GeoLocation) string
}

// Narrow filters items by city, then region, then country of geo and returns
// the first non-empty subset. Blank or sentinel criteria are skipped. When no
// rung matches the whole input is returned as LevelGlobal, and an empty input
// yields LevelEmpty. Order is preserved.
func Narrow[T any](items []T, geo models.GeoLocation, geoOf func(T) models.GeoLocation) ([]T, Level) {
	if len(items) == 0 {
		return items, LevelEmpty
	}

	rungs := []rung{
		{LevelCity, geo.City, func(g models.GeoLocation) string { return g.City }},
		{LevelRegion, geo.Region, func(g models.GeoLocation) string { return g.Region }},
		{LevelCountry, geo.Country, func(g models.GeoLocation) string { return g.Country }},
	}

	for _, r := range rungs {
		if models.IsSentinel(r.criteria) {
			continue
		}
		var matched []T
		for _, item := range items {
			if r.field(geoOf(item)) == r.criteria {
				matched = append(matched, item)
			}
		}
		if len(matched) > 0 {
			return matched, r.level
		}
	}

	return items, LevelGlobal
}
