package repository

import (
	"errors"

	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	return r.FindByIDInTx(r.db, id)
}

func (r *UserRepository) FindByIDInTx(tx *gorm.DB, id uint) (*models.User, error) {
	var user models.User
	err := tx.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindByIDsInTx returns the users keyed by ID; missing IDs are absent from the map.
func (r *UserRepository) FindByIDsInTx(tx *gorm.DB, ids []uint) (map[uint]models.User, error) {
	found := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var users []models.User
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		found[u.ID] = u
	}
	return found, nil
}

func (r *UserRepository) FindActiveByRoleInTx(tx *gorm.DB, roles ...string) ([]models.User, error) {
	var users []models.User
	err := tx.Where("active = ? AND role IN ?", true, roles).Order("id").Find(&users).Error
	return users, err
}

func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) FindAll() ([]models.User, error) {
	var users []models.User
	err := r.db.Order("username").Find(&users).Error
	return users, err
}
