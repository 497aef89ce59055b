package repository

import (
	"errors"

	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository reads the reference data tasks point at: activity
// types, plots, campaigns and periods.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) FindActivityTypeInTx(tx *gorm.DB, code string) (*models.ActivityType, error) {
	var at models.ActivityType
	return firstOrNil(tx.Where("code = ?", code), &at)
}

func (r *CatalogRepository) FindPlotInTx(tx *gorm.DB, id uint) (*models.Plot, error) {
	var plot models.Plot
	return firstOrNil(tx.Where("id = ?", id), &plot)
}

func (r *CatalogRepository) FindCampaignInTx(tx *gorm.DB, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	return firstOrNil(tx.Where("id = ?", id), &campaign)
}

func (r *CatalogRepository) FindPeriodInTx(tx *gorm.DB, id uint) (*models.Period, error) {
	var period models.Period
	return firstOrNil(tx.Where("id = ?", id), &period)
}

func (r *CatalogRepository) FindPlotByCode(code string) (*models.Plot, error) {
	var plot models.Plot
	return firstOrNil(r.db.Where("code = ?", code), &plot)
}

func (r *CatalogRepository) ListActivityTypes() ([]models.ActivityType, error) {
	var types []models.ActivityType
	err := r.db.Order("code").Find(&types).Error
	return types, err
}

func (r *CatalogRepository) UpsertActivityType(at *models.ActivityType) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "harvest"}),
	}).Create(at).Error
}

func (r *CatalogRepository) CreatePlot(plot *models.Plot) error {
	return r.db.Create(plot).Error
}

func (r *CatalogRepository) CreateCampaign(campaign *models.Campaign) error {
	return r.db.Create(campaign).Error
}

func (r *CatalogRepository) CreatePeriod(period *models.Period) error {
	return r.db.Create(period).Error
}

func firstOrNil[T any](q *gorm.DB, dest *T) (*T, error) {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return dest, nil
}
