package station

import "strings"

type Station struct {
	Name string
}

func (s Station) Code() string {
	return s.Name
}

func (s Station) Label() string {
	// Capitalize first letter
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Bar     Station
	Cold    Station
	Hot     Station
	Default Station
}

var Stations = Enum{
	Bar:     Station{Name: "bar"},
	Cold:    Station{Name: "cold"},
	Hot:     Station{Name: "hot"},
	Default: Station{Name: "default"},
}

var All = []Station{
	Stations.Bar,
	Stations.Cold,
	Stations.Hot,
	Stations.Default,
}

// ByName returns the station for a given name, or nil if not found
func ByName(name string) *Station {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

var (
	barKeywords  = []string{"beverage", "drink", "bar", "juice", "coffee", "tea"}
	coldKeywords = []string{"salad", "cold"}
	hotKeywords  = []string{"main", "entree", "hot", "appetizer", "dessert"}
)

// Route maps a menu category name to the station that prepares it.
// Rules are checked in order and the first match wins, so "Cold Appetizers"
// lands on cold and "Hot Beverages" lands on bar.
func Route(category string) Station {
	name := strings.ToLower(category)

	switch {
	case containsAny(name, barKeywords):
		return Stations.Bar
	case containsAny(name, coldKeywords),
		strings.Contains(name, "appetizer") && strings.Contains(name, "cold"):
		return Stations.Cold
	case containsAny(name, hotKeywords):
		return Stations.Hot
	default:
		return Stations.Default
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
