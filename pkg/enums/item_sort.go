package enums

import (
	"fmt"
	"strings"
)

// ItemSort orders catalog listings.
type ItemSort string

const (
	ItemSortNewest    ItemSort = "newest"
	ItemSortPriceAsc  ItemSort = "price_asc"
	ItemSortPriceDesc ItemSort = "price_desc"
)

var validItemSorts = []ItemSort{
	ItemSortNewest,
	ItemSortPriceAsc,
	ItemSortPriceDesc,
}

func (s ItemSort) String() string {
	return string(s)
}

func (s ItemSort) IsValid() bool {
	for _, candidate := range validItemSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseItemSort converts a query value into an ItemSort. Empty input means newest.
func ParseItemSort(value string) (ItemSort, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ItemSortNewest, nil
	}
	for _, candidate := range validItemSorts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sort %q", value)
}
