package analysis

import "strings"

// Category is an equipment family derived from the device name.
type Category string

const (
	CategoryPzS12V Category = "PzS_12V"
	CategoryChina  Category = "China"
	CategorySM     Category = "SM"
	CategoryMO     Category = "MO"
	CategoryBG     Category = "BG"
	CategoryDIG    Category = "DIG"
	CategoryCP300  Category = "CP-300"
	CategoryOther  Category = "Other"
)

// Categories lists every category in rule priority order.
var Categories = []Category{
	CategoryPzS12V, CategoryChina, CategorySM, CategoryMO,
	CategoryBG, CategoryDIG, CategoryCP300, CategoryOther,
}

type categoryRule struct {
	category Category
	match    func(name string) bool
}

func containsAll(subs ...string) func(string) bool {
	return func(name string) bool {
		for _, s := range subs {
			if !strings.Contains(name, s) {
				return false
			}
		}
		return true
	}
}

func containsAny(subs ...string) func(string) bool {
	return func(name string) bool {
		for _, s := range subs {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// first match wins
var categoryRules = []categoryRule{
	{CategoryPzS12V, containsAll("pzs", "12v")},
	{CategoryChina, containsAny("china")},
	{CategorySM, containsAny(" sm", "sm ")},
	{CategoryMO, containsAny(" mo", "mo ")},
	{CategoryBG, containsAny(" bg", "bg ")},
	{CategoryDIG, containsAny("dig")},
	{CategoryCP300, containsAny("cp-300")},
}

// Categorize maps a device name to its category; unmatched names are Other.
func Categorize(device string) Category {
	name := strings.ToLower(device)
	for _, r := range categoryRules {
		if r.match(name) {
			return r.category
		}
	}
	return CategoryOther
}

// CategoryAggregate is the summed daily consumption of the devices in one category.
type CategoryAggregate struct {
	Category Category
	Members  []string
	Daily    []float64
}

// AggregateCategories groups the daily table by category. Empty categories are omitted
// and the result follows Categories order.
func AggregateCategories(daily *DailyTable) []CategoryAggregate {
	byCat := make(map[Category]*CategoryAggregate)
	for d, name := range daily.Devices {
		c := Categorize(name)
		agg, ok := byCat[c]
		if !ok {
			agg = &CategoryAggregate{Category: c, Daily: make([]float64, len(daily.Days))}
			byCat[c] = agg
		}
		agg.Members = append(agg.Members, name)
		for i, v := range daily.Values[d] {
			agg.Daily[i] += v
		}
	}
	var out []CategoryAggregate
	for _, c := range Categories {
		if agg, ok := byCat[c]; ok {
			out = append(out, *agg)
		}
	}
	return out
}
