package enums

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SweetCategory is the closed set of catalog categories. Values are stored as
// the canonical token and rendered by display name.
type SweetCategory string

const (
	SweetCategoryChocolate     SweetCategory = "Chocolate"
	SweetCategoryCandy         SweetCategory = "Candy"
	SweetCategoryCake          SweetCategory = "Cake"
	SweetCategoryCookie        SweetCategory = "Cookie"
	SweetCategoryPastry        SweetCategory = "Pastry"
	SweetCategoryIceCream      SweetCategory = "Ice_Cream"
	SweetCategoryLadoo         SweetCategory = "Ladoo"
	SweetCategoryBarfi         SweetCategory = "Barfi"
	SweetCategoryHalwa         SweetCategory = "Halwa"
	SweetCategoryRasgulla      SweetCategory = "Rasgulla"
	SweetCategoryGulabJamun    SweetCategory = "Gulab_Jamun"
	SweetCategoryKheer         SweetCategory = "Kheer"
	SweetCategoryPeda          SweetCategory = "Peda"
	SweetCategoryJalebi        SweetCategory = "Jalebi"
	SweetCategoryBengaliSweets SweetCategory = "Bengali_Sweets"
	SweetCategoryDrySweets     SweetCategory = "Dry_Sweets"
	SweetCategoryMilkSweets    SweetCategory = "Milk_Sweets"
	SweetCategoryNamkeen       SweetCategory = "Namkeen"
	SweetCategoryBeverages     SweetCategory = "Beverages"
	SweetCategoryBakery        SweetCategory = "Bakery"
	SweetCategorySnacks        SweetCategory = "Snacks"
	SweetCategoryOther         SweetCategory = "Other"
)

var validSweetCategories = []SweetCategory{
	SweetCategoryChocolate,
	SweetCategoryCandy,
	SweetCategoryCake,
	SweetCategoryCookie,
	SweetCategoryPastry,
	SweetCategoryIceCream,
	SweetCategoryLadoo,
	SweetCategoryBarfi,
	SweetCategoryHalwa,
	SweetCategoryRasgulla,
	SweetCategoryGulabJamun,
	SweetCategoryKheer,
	SweetCategoryPeda,
	SweetCategoryJalebi,
	SweetCategoryBengaliSweets,
	SweetCategoryDrySweets,
	SweetCategoryMilkSweets,
	SweetCategoryNamkeen,
	SweetCategoryBeverages,
	SweetCategoryBakery,
	SweetCategorySnacks,
	SweetCategoryOther,
}

// SweetCategories returns every category in declaration order.
func SweetCategories() []SweetCategory {
	out := make([]SweetCategory, len(validSweetCategories))
	copy(out, validSweetCategories)
	return out
}

// String implements fmt.Stringer.
func (c SweetCategory) String() string {
	return string(c)
}

// DisplayName renders the category with spaces instead of underscores.
func (c SweetCategory) DisplayName() string {
	return strings.ReplaceAll(string(c), "_", " ")
}

// IsValid reports whether the value is a known SweetCategory.
func (c SweetCategory) IsValid() bool {
	for _, candidate := range validSweetCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// MarshalJSON emits the display name.
func (c SweetCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.DisplayName())
}

// ParseSweetCategory accepts either the token ("Ice_Cream") or the display
// name ("Ice Cream"). Matching is case-sensitive.
func ParseSweetCategory(value string) (SweetCategory, error) {
	token := strings.ReplaceAll(strings.TrimSpace(value), " ", "_")
	for _, candidate := range validSweetCategories {
		if string(candidate) == token {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sweet category %q", value)
}
