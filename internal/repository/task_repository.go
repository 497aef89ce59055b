package repository

import (
	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type TaskFilter struct {
	State        string
	PlotID       uint
	ActivityType string
	WorkerID     uint
	Limit        int
	Offset       int
}

func (r *TaskRepository) Create(tx *gorm.DB, task *models.Task) error {
	return tx.Omit(clause.Associations).Create(task).Error
}

func (r *TaskRepository) FindByID(id uint) (*models.Task, error) {
	var task models.Task
	return firstOrNil(r.db.Preload("Assignments", func(db *gorm.DB) *gorm.DB {
		return db.Order("task_assignments.id")
	}).Where("id = ?", id), &task)
}

func (r *TaskRepository) FindByIDForUpdate(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) UpdateInTx(tx *gorm.DB, task *models.Task) error {
	return tx.Omit(clause.Associations).Save(task).Error
}

func (r *TaskRepository) List(filter TaskFilter) ([]models.Task, error) {
	q := r.db.Model(&models.Task{})
	if filter.State != "" {
		q = q.Where("tasks.state = ?", filter.State)
	}
	if filter.PlotID != 0 {
		q = q.Where("tasks.plot_id = ?", filter.PlotID)
	}
	if filter.ActivityType != "" {
		q = q.Where("tasks.activity_type = ?", filter.ActivityType)
	}
	if filter.WorkerID != 0 {
		q = q.Where("EXISTS (SELECT 1 FROM task_assignments a WHERE a.task_id = tasks.id AND a.worker_id = ?)", filter.WorkerID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var tasks []models.Task
	err := q.Preload("Assignments").Order("tasks.scheduled_date DESC, tasks.id DESC").Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) AssignmentsInTx(tx *gorm.DB, taskID uint) ([]models.TaskAssignment, error) {
	var rows []models.TaskAssignment
	err := tx.Where("task_id = ?", taskID).Order("id").Find(&rows).Error
	return rows, err
}

func (r *TaskRepository) IsAssignedInTx(tx *gorm.DB, taskID, workerID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND worker_id = ?", taskID, workerID).
		Count(&count).Error
	return count > 0, err
}

func (r *TaskRepository) CreateAssignmentsInTx(tx *gorm.DB, rows []models.TaskAssignment) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (r *TaskRepository) DeleteAssignmentsInTx(tx *gorm.DB, taskID uint, workerIDs []uint) error {
	if len(workerIDs) == 0 {
		return nil
	}
	return tx.Where("task_id = ? AND worker_id IN ?", taskID, workerIDs).
		Delete(&models.TaskAssignment{}).Error
}

func (r *TaskRepository) AppendStateLogInTx(tx *gorm.DB, entry *models.TaskStateLog) error {
	return tx.Create(entry).Error
}

func (r *TaskRepository) StateLogsInTx(tx *gorm.DB, taskID uint) ([]models.TaskStateLog, error) {
	var rows []models.TaskStateLog
	err := tx.Where("task_id = ?", taskID).Order("id").Find(&rows).Error
	return rows, err
}

// ReplaceRequirementsInTx deletes every requirement row of the task and inserts rows.
func (r *TaskRepository) ReplaceRequirementsInTx(tx *gorm.DB, taskID uint, rows []models.TaskRequirement) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskRequirement{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (r *TaskRepository) RequirementsInTx(tx *gorm.DB, taskID uint) ([]models.TaskRequirement, error) {
	var rows []models.TaskRequirement
	err := tx.Preload("Item").Where("task_id = ?", taskID).Order("id").Find(&rows).Error
	return rows, err
}

// ReplaceConsumablesInTx deletes every consumable line of the task and inserts rows.
func (r *TaskRepository) ReplaceConsumablesInTx(tx *gorm.DB, taskID uint, rows []models.TaskConsumable) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskConsumable{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&rows).Error
}

func (r *TaskRepository) ConsumablesInTx(tx *gorm.DB, taskID uint) ([]models.TaskConsumable, error) {
	var rows []models.TaskConsumable
	err := tx.Preload("Item").Where("task_id = ?", taskID).Order("id").Find(&rows).Error
	return rows, err
}
