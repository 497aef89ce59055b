package repository

import (
	"errors"

	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type HarvestRepository struct {
	db *gorm.DB
}

func NewHarvestRepository(db *gorm.DB) *HarvestRepository {
	return &HarvestRepository{db: db}
}

func (r *HarvestRepository) FindByCodeForUpdate(tx *gorm.DB, code string) (*models.HarvestRecord, error) {
	var record models.HarvestRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *HarvestRepository) SaveInTx(tx *gorm.DB, record *models.HarvestRecord) error {
	return tx.Omit(clause.Associations).Save(record).Error
}

// ReplaceLinesInTx destroys the record's classification and rejection rows
// and bulk-inserts the given ones.
func (r *HarvestRepository) ReplaceLinesInTx(tx *gorm.DB, recordID uint, classes []models.HarvestClassification, rejections []models.HarvestRejection) error {
	if err := tx.Where("harvest_record_id = ?", recordID).Delete(&models.HarvestClassification{}).Error; err != nil {
		return err
	}
	if err := tx.Where("harvest_record_id = ?", recordID).Delete(&models.HarvestRejection{}).Error; err != nil {
		return err
	}
	if len(classes) > 0 {
		if err := tx.Create(&classes).Error; err != nil {
			return err
		}
	}
	if len(rejections) > 0 {
		if err := tx.Create(&rejections).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *HarvestRepository) UpsertPostHarvestInTx(tx *gorm.DB, detail *models.PostHarvestDetail) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "harvest_record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"washed", "disinfected", "waxed", "packed", "notes"}),
	}).Create(detail).Error
}

func (r *HarvestRepository) DeletePostHarvestInTx(tx *gorm.DB, recordID uint) error {
	return tx.Where("harvest_record_id = ?", recordID).Delete(&models.PostHarvestDetail{}).Error
}

func (r *HarvestRepository) FindByTaskIDInTx(tx *gorm.DB, taskID uint) (*models.HarvestRecord, error) {
	var record models.HarvestRecord
	err := tx.Preload("Classifications").
		Preload("Rejections").
		Preload("PostHarvest").
		Where("task_id = ?", taskID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *HarvestRepository) FindByCode(code string) (*models.HarvestRecord, error) {
	var record models.HarvestRecord
	err := r.db.Preload("Classifications").
		Preload("Rejections").
		Preload("PostHarvest").
		Where("code = ?", code).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *HarvestRepository) ListByCampaign(campaignID uint) ([]models.HarvestRecord, error) {
	var records []models.HarvestRecord
	err := r.db.Where("campaign_id = ?", campaignID).Order("harvest_date DESC").Find(&records).Error
	return records, err
}
