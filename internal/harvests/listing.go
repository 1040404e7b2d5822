package harvests

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmexchange-backend/internal/ledger"
	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmexchange-backend/pkg/errors"
)

const (
	// CategoryAll disables the category filter when browsing.
	CategoryAll = "all"

	defaultUnit       = "kg"
	maxTitleLength    = 200
	maxDescLength     = 2000
	maxCategoryLength = 50
	maxUnitLength     = 20
	maxImageURLLength = 500
	priceScale        = 2
)

// CreateInput is a new listing as submitted by a farmer.
type CreateInput struct {
	Title             string
	Description       *string
	Category          string
	Price             decimal.Decimal
	Unit              string
	QuantityAvailable decimal.Decimal
	ImageURL          *string
	HarvestDate       *time.Time
}

// UpdateInput carries the fields a farmer may change; nil leaves a field as is.
type UpdateInput struct {
	Title             *string
	Description       *string
	Category          *string
	Price             *decimal.Decimal
	Unit              *string
	QuantityAvailable *decimal.Decimal
	ImageURL          *string
	HarvestDate       *time.Time
}

// ListingChanges are the validated non-stock column updates of an edit.
type ListingChanges struct {
	Title       *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Unit        *string
	ImageURL    *string
	HarvestDate *time.Time
}

func (c ListingChanges) columns() map[string]any {
	cols := map[string]any{}
	if c.Title != nil {
		cols["title"] = *c.Title
	}
	if c.Description != nil {
		cols["description"] = nullable(*c.Description)
	}
	if c.Category != nil {
		cols["category"] = *c.Category
	}
	if c.Price != nil {
		cols["price"] = *c.Price
	}
	if c.Unit != nil {
		cols["unit"] = *c.Unit
	}
	if c.ImageURL != nil {
		cols["image_url"] = nullable(*c.ImageURL)
	}
	if c.HarvestDate != nil {
		cols["harvest_date"] = c.HarvestDate.UTC()
	}
	if len(cols) > 0 {
		cols["updated_at"] = time.Now().UTC()
	}
	return cols
}

// IsEmpty reports whether no listing column changes.
func (c ListingChanges) IsEmpty() bool {
	return len(c.columns()) == 0
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// NewHarvest validates the input and builds the row to insert. Stock and
// status are left for the caller to derive.
func NewHarvest(input CreateInput) (*models.Harvest, error) {
	title, err := normalizeText("title", input.Title, maxTitleLength, true)
	if err != nil {
		return nil, err
	}
	category, err := normalizeCategory(input.Category)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = defaultUnit
	}
	if unit, err = normalizeText("unit", unit, maxUnitLength, true); err != nil {
		return nil, err
	}

	harvest := &models.Harvest{
		Title:             title,
		Category:          category,
		Price:             input.Price,
		Unit:              unit,
		QuantityAvailable: input.QuantityAvailable,
	}
	if input.Description != nil {
		desc, err := normalizeText("description", *input.Description, maxDescLength, false)
		if err != nil {
			return nil, err
		}
		harvest.Description = nullable(desc)
	}
	if input.ImageURL != nil {
		url, err := normalizeText("image_url", *input.ImageURL, maxImageURLLength, false)
		if err != nil {
			return nil, err
		}
		harvest.ImageURL = nullable(url)
	}
	if input.HarvestDate != nil {
		date := input.HarvestDate.UTC()
		harvest.HarvestDate = &date
	}
	return harvest, nil
}

// Changes validates an edit and splits out the listing columns.
func (u UpdateInput) Changes() (ListingChanges, error) {
	var changes ListingChanges
	if u.Title != nil {
		title, err := normalizeText("title", *u.Title, maxTitleLength, true)
		if err != nil {
			return changes, err
		}
		changes.Title = &title
	}
	if u.Description != nil {
		desc, err := normalizeText("description", *u.Description, maxDescLength, false)
		if err != nil {
			return changes, err
		}
		changes.Description = &desc
	}
	if u.Category != nil {
		category, err := normalizeCategory(*u.Category)
		if err != nil {
			return changes, err
		}
		changes.Category = &category
	}
	if u.Price != nil {
		if err := validatePrice(*u.Price); err != nil {
			return changes, err
		}
		changes.Price = u.Price
	}
	if u.Unit != nil {
		unit, err := normalizeText("unit", *u.Unit, maxUnitLength, true)
		if err != nil {
			return changes, err
		}
		changes.Unit = &unit
	}
	if u.ImageURL != nil {
		url, err := normalizeText("image_url", *u.ImageURL, maxImageURLLength, false)
		if err != nil {
			return changes, err
		}
		changes.ImageURL = &url
	}
	changes.HarvestDate = u.HarvestDate
	return changes, nil
}

// NormalizeBrowseCategory maps the "all" sentinel and blanks to no filter.
func NormalizeBrowseCategory(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == CategoryAll {
		return ""
	}
	return value
}

func normalizeCategory(value string) (string, error) {
	category, err := normalizeText("category", strings.ToLower(value), maxCategoryLength, true)
	if err != nil {
		return "", err
	}
	if category == CategoryAll {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "category \"all\" is reserved")
	}
	return category, nil
}

func normalizeText(field, value string, max int, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if required && value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]any{"field": field})
	}
	if len([]rune(value)) > max {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is too long").
			WithDetails(map[string]any{"field": field, "max_length": max})
	}
	return value, nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero").
			WithDetails(map[string]any{"field": "price"})
	}
	if !price.Equal(price.Round(priceScale)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places").
			WithDetails(map[string]any{"field": "price"})
	}
	if price.GreaterThan(ledger.MaxAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price exceeds the maximum of "+ledger.MaxAmount.StringFixed(priceScale)).
			WithDetails(map[string]any{"field": "price"})
	}
	return nil
}
