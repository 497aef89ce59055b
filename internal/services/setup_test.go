package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/h4ks-com/fieldops/internal/database"
	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/h4ks-com/fieldops/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail map[uint]bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[msg.RecipientID] {
		return errors.New("mailbox unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) byCategory(category string) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, m := range n.sent {
		if m.Category == category {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

type testEnv struct {
	db            *gorm.DB
	userRepo      *repository.UserRepository
	catalogRepo   *repository.CatalogRepository
	inventoryRepo *repository.InventoryRepository
	taskRepo      *repository.TaskRepository
	harvestRepo   *repository.HarvestRepository
	notifier      *recordingNotifier
	inventory     *InventoryService
	harvests      *HarvestService
	tasks         *TaskService
	catalog       *CatalogService

	supervisor models.User
	technician models.User
	worker1    models.User
	worker2    models.User
	inactive   models.User
	plot       models.Plot
	campaign   models.Campaign
	period     models.Period
}

func (e *testEnv) sup() Actor  { return ActorFromUser(&e.supervisor) }
func (e *testEnv) tech() Actor { return ActorFromUser(&e.technician) }
func (e *testEnv) w1() Actor   { return ActorFromUser(&e.worker1) }
func (e *testEnv) w2() Actor   { return ActorFromUser(&e.worker2) }

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env, err := newTestEnv()
	require.NoError(t, err)
	return env
}

// newTestEnv builds an in-memory database with five users (one inactive), a
// plot and an open campaign with a single period.
func newTestEnv() (*testEnv, error) {
	db, err := database.Connect(":memory:")
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	env := &testEnv{
		db:            db,
		userRepo:      repository.NewUserRepository(db),
		catalogRepo:   repository.NewCatalogRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
		taskRepo:      repository.NewTaskRepository(db),
		harvestRepo:   repository.NewHarvestRepository(db),
		notifier:      &recordingNotifier{},
	}
	env.inventory = NewInventoryService(env.inventoryRepo, env.userRepo, db)
	env.harvests = NewHarvestService(env.harvestRepo)
	env.catalog = NewCatalogService(env.userRepo, env.catalogRepo)
	env.tasks = NewTaskService(db, TaskServiceDeps{
		Tasks:        env.taskRepo,
		Users:        env.userRepo,
		Catalog:      env.catalogRepo,
		Inventory:    env.inventoryRepo,
		Harvests:     env.harvestRepo,
		Registry:     indicators.NewRegistry(),
		Ledger:       env.inventory,
		Consolidator: env.harvests,
		Notifier:     env.notifier,
	})

	users := []struct {
		into     *models.User
		username string
		role     string
		active   bool
	}{
		{&env.supervisor, "ana", models.RoleSupervisor, true},
		{&env.technician, "tomas", models.RoleTechnician, true},
		{&env.worker1, "luis", models.RoleWorker, true},
		{&env.worker2, "maria", models.RoleWorker, true},
		{&env.inactive, "pedro", models.RoleWorker, false},
	}
	for _, u := range users {
		created, err := env.catalog.EnsureUser(u.username, u.username, u.role, u.active)
		if err != nil {
			return nil, err
		}
		*u.into = *created
	}

	plot, err := env.catalog.EnsurePlot("L01", "Lote 1", 2.5)
	if err != nil {
		return nil, err
	}
	env.plot = *plot

	campaign, periods, err := env.catalog.CreateCampaign("2025", date(2025, 1, 1), nil, true, []string{"S01"})
	if err != nil {
		return nil, err
	}
	env.campaign = *campaign
	env.period = periods[0]

	return env, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) createItem(t *testing.T, code, category, unit, stock, minimum string) *models.InventoryItem {
	t.Helper()
	item, err := e.inventory.CreateItem(context.Background(), e.sup(), CreateItemInput{
		Code:         code,
		Name:         code,
		Category:     category,
		BaseUnit:     unit,
		InitialStock: dec(stock),
		MinimumStock: dec(minimum),
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) reloadItem(t *testing.T, id uint) *models.InventoryItem {
	t.Helper()
	item, err := e.inventoryRepo.FindItem(id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func (e *testEnv) createTask(t *testing.T, activity string, assignees ...uint) *models.Task {
	t.Helper()
	input := CreateTaskInput{
		ActivityType:  activity,
		PlotID:        e.plot.ID,
		ScheduledDate: date(2025, 3, 1),
		Assignees:     assignees,
	}
	if activity == indicators.Harvest {
		input.CampaignID = &e.campaign.ID
	}
	task, err := e.tasks.CreateTask(context.Background(), e.sup(), input)
	require.NoError(t, err)
	return task
}

func (e *testEnv) stateLog(t *testing.T, taskID uint) []models.TaskStateLog {
	t.Helper()
	logs, err := e.taskRepo.StateLogsInTx(e.db, taskID)
	require.NoError(t, err)
	return logs
}

func (e *testEnv) reservations(t *testing.T, taskID uint, state string) []models.InventoryReservation {
	t.Helper()
	rows, err := e.inventoryRepo.ReservationsInTx(e.db, taskID, state)
	require.NoError(t, err)
	return rows
}
