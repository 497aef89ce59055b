package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/shopspring/decimal"
)

// lifecycleContext holds state for one task lifecycle scenario.
type lifecycleContext struct {
	env   *testEnv
	users map[string]models.User
	items map[string]*models.InventoryItem
	task  *models.Task
	err   error
}

func (lc *lifecycleContext) reset() error {
	env, err := newTestEnv()
	if err != nil {
		return err
	}
	lc.env = env
	lc.users = map[string]models.User{}
	for _, u := range []models.User{env.supervisor, env.technician, env.worker1, env.worker2, env.inactive} {
		lc.users[u.Username] = u
	}
	lc.items = map[string]*models.InventoryItem{}
	lc.task = nil
	lc.err = nil
	return nil
}

func (lc *lifecycleContext) actor(username string) (Actor, error) {
	u, ok := lc.users[username]
	if !ok {
		return Actor{}, fmt.Errorf("unknown user %q", username)
	}
	return ActorFromUser(&u), nil
}

func (lc *lifecycleContext) aConsumable(code, unit string, stock, minimum string) error {
	item, err := lc.env.inventory.CreateItem(context.Background(), lc.env.sup(), CreateItemInput{
		Code:         code,
		Name:         code,
		Category:     models.CategoryConsumable,
		BaseUnit:     unit,
		InitialStock: decimal.RequireFromString(stock),
		MinimumStock: decimal.RequireFromString(minimum),
	})
	if err != nil {
		return err
	}
	lc.items[code] = item
	return nil
}

func (lc *lifecycleContext) aTaskAssignedTo(activity, username string) error {
	worker, ok := lc.users[username]
	if !ok {
		return fmt.Errorf("unknown user %q", username)
	}
	input := CreateTaskInput{
		ActivityType:  activity,
		PlotID:        lc.env.plot.ID,
		ScheduledDate: date(2025, 3, 1),
		Assignees:     []uint{worker.ID},
	}
	if activity == indicators.Harvest {
		input.CampaignID = &lc.env.campaign.ID
	}
	task, err := lc.env.tasks.CreateTask(context.Background(), lc.env.sup(), input)
	if err != nil {
		return err
	}
	lc.task = task
	return nil
}

func (lc *lifecycleContext) theTaskConsumes(quantity, unit, code string) error {
	item, ok := lc.items[code]
	if !ok {
		return fmt.Errorf("unknown item %q", code)
	}
	_, err := lc.env.tasks.ConfigureConsumables(context.Background(), lc.env.sup(), lc.task.ID, []ConsumableInput{
		{ItemID: item.ID, Quantity: decimal.RequireFromString(quantity), Unit: unit},
	})
	return err
}

// act runs one lifecycle operation; its error is kept for later assertions.
func (lc *lifecycleContext) act(username, action string) error {
	actor, err := lc.actor(username)
	if err != nil {
		return err
	}
	ctx := context.Background()
	switch action {
	case "starts":
		_, lc.err = lc.env.tasks.StartTask(ctx, actor, lc.task.ID, "")
	case "verifies":
		_, lc.err = lc.env.tasks.VerifyTask(ctx, actor, lc.task.ID, "", false)
	case "force-verifies":
		_, lc.err = lc.env.tasks.VerifyTask(ctx, actor, lc.task.ID, "forced", true)
	case "cancels":
		_, lc.err = lc.env.tasks.CancelTask(ctx, actor, lc.task.ID, "cancelled in scenario")
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (lc *lifecycleContext) completesWithIndicators(username string, payload *godog.DocString) error {
	actor, err := lc.actor(username)
	if err != nil {
		return err
	}
	_, lc.err = lc.env.tasks.CompleteTask(context.Background(), actor, lc.task.ID, "", json.RawMessage(payload.Content))
	return nil
}

func (lc *lifecycleContext) theOperationFailsWith(kind string) error {
	if got := ErrorKind(lc.err); got != kind {
		return fmt.Errorf("expected %s failure, got %s (%v)", kind, got, lc.err)
	}
	return nil
}

func (lc *lifecycleContext) detail() (*TaskDetail, error) {
	return lc.env.tasks.GetTask(context.Background(), lc.env.sup(), lc.task.ID)
}

func (lc *lifecycleContext) theTaskIs(state string) error {
	d, err := lc.detail()
	if err != nil {
		return err
	}
	if d.Task.State != state {
		return fmt.Errorf("expected task in %s, got %s", state, d.Task.State)
	}
	return nil
}

func (lc *lifecycleContext) theTaskHistoryIs(list string) error {
	d, err := lc.detail()
	if err != nil {
		return err
	}
	got := make([]string, len(d.History))
	for i, h := range d.History {
		got[i] = h.State
	}
	if strings.Join(got, ", ") != list {
		return fmt.Errorf("expected history %q, got %q", list, strings.Join(got, ", "))
	}
	return nil
}

func (lc *lifecycleContext) theSummaryHas(key, field, value string) error {
	d, err := lc.detail()
	if err != nil {
		return err
	}
	summary, ok := d.Task.Data.Data().Summaries[key]
	if !ok {
		return fmt.Errorf("summary %s missing", key)
	}
	if got := fmt.Sprint(summary[field]); got != value {
		return fmt.Errorf("expected %s.%s = %s, got %s", key, field, value, got)
	}
	return nil
}

func (lc *lifecycleContext) receivedNotification(username, category string) error {
	u := lc.users[username]
	for _, n := range lc.env.notifier.byCategory(category) {
		if n.RecipientID == u.ID {
			return nil
		}
	}
	return fmt.Errorf("%s has no %s notification", username, category)
}

func (lc *lifecycleContext) itemHasStock(code, stock string) error {
	item, ok := lc.items[code]
	if !ok {
		return fmt.Errorf("unknown item %q", code)
	}
	current, err := lc.env.inventoryRepo.FindItem(item.ID)
	if err != nil {
		return err
	}
	if !current.CurrentStock.Equal(decimal.RequireFromString(stock)) {
		return fmt.Errorf("expected %s stock %s, got %s", code, stock, current.CurrentStock)
	}
	return nil
}

func (lc *lifecycleContext) noOutstandingReservations() error {
	rows, err := lc.env.inventoryRepo.ReservationsInTx(lc.env.db, lc.task.ID, models.ReservationReserved)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return fmt.Errorf("%d reservations still outstanding", len(rows))
	}
	return nil
}

func (lc *lifecycleContext) noHarvestRecord() error {
	var n int64
	if err := lc.env.db.Model(&models.HarvestRecord{}).Count(&n).Error; err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("expected no harvest record, found %d", n)
	}
	return nil
}

func initializeLifecycleScenario(sc *godog.ScenarioContext) {
	lc := &lifecycleContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, lc.reset()
	})

	sc.Step(`^a consumable "([^"]*)" measured in "([^"]*)" with (-?[\d.]+) in stock and minimum ([\d.]+)$`, lc.aConsumable)
	sc.Step(`^a "([^"]*)" task assigned to "([^"]*)"$`, lc.aTaskAssignedTo)
	sc.Step(`^the task consumes ([\d.]+) "([^"]*)" of "([^"]*)"$`, lc.theTaskConsumes)

	sc.Step(`^"([^"]*)" (starts|verifies|force-verifies|cancels) the task$`, lc.act)
	sc.Step(`^"([^"]*)" completes the task with indicators:$`, lc.completesWithIndicators)

	sc.Step(`^the operation fails with "([^"]*)"$`, lc.theOperationFailsWith)
	sc.Step(`^the task is "([^"]*)"$`, lc.theTaskIs)
	sc.Step(`^the task history is "([^"]*)"$`, lc.theTaskHistoryIs)
	sc.Step(`^the task summary "([^"]*)" has "([^"]*)" equal to "([^"]*)"$`, lc.theSummaryHas)
	sc.Step(`^"([^"]*)" received a "([^"]*)" notification$`, lc.receivedNotification)
	sc.Step(`^"([^"]*)" has (-?[\d.]+) in stock$`, lc.itemHasStock)
	sc.Step(`^the task has no outstanding reservations$`, lc.noOutstandingReservations)
	sc.Step(`^no harvest record exists$`, lc.noHarvestRecord)
}

func TestTaskLifecycleFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping feature suite in short mode")
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/task_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run task lifecycle features")
	}
}
