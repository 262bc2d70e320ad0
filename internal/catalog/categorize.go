// Package catalog holds helpers for working with catalog metadata that
// don't belong in the storage layer.
package catalog

import "strings"

// Categorize guesses a retail category for a free-form custom item name.
// Case-insensitive: exact match first, then substring match. Falls back to
// "Other". Only custom entries need this — catalog-backed entries carry
// their provider category.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return "Other"
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return "Other"
}

var exactMatch = map[string]string{
	// Beverages
	"coffee":          "Beverages",
	"tea":             "Beverages",
	"soda":            "Beverages",
	"water":           "Beverages",
	"juice":           "Beverages",
	"energy drink":    "Beverages",
	"sparkling water": "Beverages",
	"kombucha":        "Beverages",

	// Snacks
	"chips":        "Snacks",
	"candy":        "Snacks",
	"chocolate":    "Snacks",
	"gum":          "Snacks",
	"crackers":     "Snacks",
	"cookies":      "Snacks",
	"popcorn":      "Snacks",
	"granola bars": "Snacks",
	"trail mix":    "Snacks",
	"jerky":        "Snacks",

	// Grocery
	"milk":   "Grocery",
	"eggs":   "Grocery",
	"bread":  "Grocery",
	"butter": "Grocery",
	"cheese": "Grocery",
	"cereal": "Grocery",

	// Supplies
	"receipt paper":  "Supplies",
	"register tape":  "Supplies",
	"paper bags":     "Supplies",
	"plastic bags":   "Supplies",
	"label rolls":    "Supplies",
	"cleaning spray": "Supplies",
	"paper towels":   "Supplies",
	"trash bags":     "Supplies",
	"gloves":         "Supplies",
	"straws":         "Supplies",
	"napkins":        "Supplies",
	"cups":           "Supplies",
	"lids":           "Supplies",

	// Health & Personal Care
	"aspirin":        "Health & Personal Care",
	"ibuprofen":      "Health & Personal Care",
	"band-aids":      "Health & Personal Care",
	"sunscreen":      "Health & Personal Care",
	"lip balm":       "Health & Personal Care",
	"hand sanitizer": "Health & Personal Care",
}

type substringEntry struct {
	keyword  string
	category string
}

// Ordered with longer/more-specific keywords first for deterministic
// priority.
var substringMatches = []substringEntry{
	// Supplies — longer phrases first
	{"receipt paper", "Supplies"},
	{"register tape", "Supplies"},
	{"label roll", "Supplies"},
	{"paper bag", "Supplies"},
	{"plastic bag", "Supplies"},
	{"trash bag", "Supplies"},
	{"garbage bag", "Supplies"},
	{"paper towel", "Supplies"},
	{"cleaning", "Supplies"},
	{"cleaner", "Supplies"},
	{"sanitizer", "Supplies"},
	{"napkin", "Supplies"},
	{"straw", "Supplies"},
	{"glove", "Supplies"},
	{"cup", "Supplies"},
	{"lid", "Supplies"},
	{"battery", "Supplies"},
	{"batteries", "Supplies"},
	{"tape", "Supplies"},

	// Beverages
	{"sparkling water", "Beverages"},
	{"energy drink", "Beverages"},
	{"coffee", "Beverages"},
	{"espresso", "Beverages"},
	{"juice", "Beverages"},
	{"soda", "Beverages"},
	{"water", "Beverages"},
	{"tea", "Beverages"},
	{"drink", "Beverages"},

	// Snacks
	{"granola bar", "Snacks"},
	{"trail mix", "Snacks"},
	{"chip", "Snacks"},
	{"candy", "Snacks"},
	{"chocolate", "Snacks"},
	{"cracker", "Snacks"},
	{"cookie", "Snacks"},
	{"popcorn", "Snacks"},
	{"pretzel", "Snacks"},
	{"snack", "Snacks"},
	{"jerky", "Snacks"},
	{"gum", "Snacks"},

	// Grocery
	{"milk", "Grocery"},
	{"bread", "Grocery"},
	{"cheese", "Grocery"},
	{"cereal", "Grocery"},
	{"egg", "Grocery"},
	{"butter", "Grocery"},
	{"yogurt", "Grocery"},

	// Health & Personal Care
	{"band-aid", "Health & Personal Care"},
	{"vitamin", "Health & Personal Care"},
	{"sunscreen", "Health & Personal Care"},
	{"lotion", "Health & Personal Care"},
	{"soap", "Health & Personal Care"},
	{"tissue", "Health & Personal Care"},
}
