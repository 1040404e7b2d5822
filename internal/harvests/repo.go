package harvests

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmexchange-backend/pkg/db/models"
	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
	"github.com/angelmondragon/farmexchange-backend/pkg/pagination"
)

// Repository persists harvest listings. Stock columns are written by the
// ledger; UpdateListing never touches them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, harvest *models.Harvest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Harvest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Harvest, error)
	UpdateListing(ctx context.Context, id uuid.UUID, changes ListingChanges) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	Browse(ctx context.Context, query BrowseQuery) ([]models.Harvest, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Harvest, error)
}

// BrowseQuery filters the public catalogue.
type BrowseQuery struct {
	Category string
	Search   string
	Cursor   *pagination.Cursor
	Limit    int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a harvest repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, harvest *models.Harvest) error {
	return r.db.WithContext(ctx).Create(harvest).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Harvest, error) {
	var harvest models.Harvest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&harvest).Error; err != nil {
		return nil, err
	}
	return &harvest, nil
}

// FindForUpdate reads the harvest with FOR UPDATE so purchases queue behind
// the caller's transaction.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Harvest, error) {
	var harvest models.Harvest
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&harvest).Error; err != nil {
		return nil, err
	}
	return &harvest, nil
}

func (r *repository) UpdateListing(ctx context.Context, id uuid.UUID, changes ListingChanges) error {
	updates := changes.columns()
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Harvest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Harvest{})
	return res.RowsAffected, res.Error
}

// Browse lists purchasable harvests newest first. The search term also
// matches the seller's name and location.
func (r *repository) Browse(ctx context.Context, query BrowseQuery) ([]models.Harvest, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Harvest{}).
		Select("harvests.*").
		Where("harvests.status = ? AND harvests.quantity_available > 0", enums.HarvestStatusAvailable)

	if query.Category != "" {
		qb = qb.Where("harvests.category = ?", query.Category)
	}
	if term := strings.TrimSpace(query.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		qb = qb.Joins("LEFT JOIN profiles ON profiles.id = harvests.seller_id").
			Where(browseSearchClause, pattern, pattern, pattern, pattern, pattern)
	}
	if query.Cursor != nil {
		qb = qb.Where("(harvests.created_at < ?) OR (harvests.created_at = ? AND harvests.id < ?)",
			query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}

	var rows []models.Harvest
	if err := qb.Order("harvests.created_at DESC").
		Order("harvests.id DESC").
		Limit(query.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

const browseSearchClause = `(LOWER(harvests.title) LIKE ? ESCAPE '\'
	OR LOWER(COALESCE(harvests.description, '')) LIKE ? ESCAPE '\'
	OR LOWER(harvests.category) LIKE ? ESCAPE '\'
	OR LOWER(COALESCE(profiles.first_name, '') || ' ' || COALESCE(profiles.last_name, '')) LIKE ? ESCAPE '\'
	OR LOWER(COALESCE(profiles.location, '')) LIKE ? ESCAPE '\')`

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Harvest, error) {
	var rows []models.Harvest
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
