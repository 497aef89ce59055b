package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pruningPayload = `{"tipo":"formacion","plantasIntervenidas":25}`

func TestCreateTask_StateFollowsAssignees(t *testing.T) {
	env := setupTestEnv(t)

	assigned := env.createTask(t, indicators.Pruning, env.worker1.ID, env.worker1.ID, env.worker2.ID)
	assert.Equal(t, models.TaskAssigned, assigned.State)
	assert.Len(t, assigned.Assignments, 2)
	assert.Len(t, env.notifier.byCategory(models.NotifyTaskAssigned), 2)

	pending := env.createTask(t, indicators.Weeding)
	assert.Equal(t, models.TaskPending, pending.State)
	assert.Empty(t, pending.Assignments)

	logs := env.stateLog(t, pending.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.TaskPending, logs[0].State)
	assert.Equal(t, env.supervisor.ID, logs[0].ActorID)
}

func TestCreateTask_SupervisorAssigneeGetsSupervisorRole(t *testing.T) {
	env := setupTestEnv(t)
	task := env.createTask(t, indicators.Pruning, env.technician.ID, env.worker1.ID)

	roles := map[uint]string{}
	for _, a := range task.Assignments {
		roles[a.WorkerID] = a.Role
	}
	assert.Equal(t, models.AssignmentSupervisor, roles[env.technician.ID])
	assert.Equal(t, models.AssignmentExecutor, roles[env.worker1.ID])
}

func TestCreateTask_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	base := func() CreateTaskInput {
		return CreateTaskInput{ActivityType: indicators.Pruning, PlotID: env.plot.ID, ScheduledDate: date(2025, 3, 1)}
	}

	closed, _, err := env.catalog.CreateCampaign("2024", date(2024, 1, 1), nil, false, nil)
	require.NoError(t, err)
	other, otherPeriods, err := env.catalog.CreateCampaign("2026", date(2026, 1, 1), nil, true, []string{"S01"})
	require.NoError(t, err)
	require.NotNil(t, other)

	missing := uint(9999)
	cases := []struct {
		name   string
		actor  Actor
		mutate func(*CreateTaskInput)
		want   error
	}{
		{"worker cannot create", env.w1(), func(*CreateTaskInput) {}, ErrForbidden},
		{"unknown activity", env.sup(), func(in *CreateTaskInput) { in.ActivityType = "riego" }, ErrValidation},
		{"missing plot", env.sup(), func(in *CreateTaskInput) { in.PlotID = 0 }, ErrValidation},
		{"unknown plot", env.sup(), func(in *CreateTaskInput) { in.PlotID = missing }, ErrNotFound},
		{"no date", env.sup(), func(in *CreateTaskInput) { in.ScheduledDate = time.Time{} }, ErrValidation},
		{"unknown campaign", env.sup(), func(in *CreateTaskInput) { in.CampaignID = &missing }, ErrNotFound},
		{"closed campaign", env.sup(), func(in *CreateTaskInput) { in.CampaignID = &closed.ID }, ErrValidation},
		{"period without campaign", env.sup(), func(in *CreateTaskInput) { in.PeriodID = &env.period.ID }, ErrValidation},
		{"period of another campaign", env.sup(), func(in *CreateTaskInput) {
			in.CampaignID = &env.campaign.ID
			in.PeriodID = &otherPeriods[0].ID
		}, ErrValidation},
		{"harvest without campaign", env.sup(), func(in *CreateTaskInput) { in.ActivityType = indicators.Harvest }, ErrValidation},
		{"unknown worker", env.sup(), func(in *CreateTaskInput) { in.Assignees = []uint{missing} }, ErrNotFound},
		{"inactive worker", env.sup(), func(in *CreateTaskInput) { in.Assignees = []uint{env.worker1.ID, env.inactive.ID} }, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base()
			tc.mutate(&in)
			_, err := env.tasks.CreateTask(ctx, tc.actor, in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Task{}).Count(&count).Error)
	assert.Zero(t, count)
	var assignments int64
	require.NoError(t, env.db.Model(&models.TaskAssignment{}).Count(&assignments).Error)
	assert.Zero(t, assignments)
	assert.Empty(t, env.notifier.byCategory(models.NotifyTaskAssigned))
}

func TestCreateTask_WithCampaignAndPeriod(t *testing.T) {
	env := setupTestEnv(t)
	task, err := env.tasks.CreateTask(context.Background(), env.tech(), CreateTaskInput{
		ActivityType:  indicators.Bagging,
		PlotID:        env.plot.ID,
		CampaignID:    &env.campaign.ID,
		PeriodID:      &env.period.ID,
		ScheduledDate: date(2025, 4, 1),
		Description:   "  semana 14  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "semana 14", task.Description)
	require.NotNil(t, task.PeriodID)
	assert.Equal(t, env.period.ID, *task.PeriodID)
}

func TestUpdateAssignments(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, indicators.Pruning)
	env.notifier.reset()

	updated, err := env.tasks.UpdateAssignments(ctx, env.sup(), task.ID, []uint{env.worker1.ID})
	require.NoError(t, err)
	assert.Equal(t, models.TaskAssigned, updated.State)
	assert.Len(t, env.notifier.byCategory(models.NotifyTaskAssigned), 1)
	logsAfterFirst := len(env.stateLog(t, task.ID))

	_, err = env.tasks.UpdateAssignments(ctx, env.sup(), task.ID, []uint{env.worker1.ID})
	require.NoError(t, err)
	assert.Len(t, env.stateLog(t, task.ID), logsAfterFirst)
	assert.Len(t, env.notifier.byCategory(models.NotifyTaskAssigned), 1)

	updated, err = env.tasks.UpdateAssignments(ctx, env.sup(), task.ID, []uint{env.worker2.ID})
	require.NoError(t, err)
	require.Len(t, updated.Assignments, 1)
	assert.Equal(t, env.worker2.ID, updated.Assignments[0].WorkerID)

	logs := env.stateLog(t, task.ID)
	assert.Equal(t, "+[4] -[3]", logs[len(logs)-1].Comment)

	_, err = env.tasks.UpdateAssignments(ctx, env.sup(), task.ID, []uint{env.inactive.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tasks.UpdateAssignments(ctx, env.w1(), task.ID, []uint{env.worker1.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.tasks.UpdateAssignments(ctx, env.sup(), 9999, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAssignments_TerminalTask(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, indicators.Pruning, env.worker1.ID)
	_, err := env.tasks.CancelTask(ctx, env.sup(), task.ID, "rain")
	require.NoError(t, err)

	_, err = env.tasks.UpdateAssignments(ctx, env.sup(), task.ID, []uint{env.worker2.ID})
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.TaskCancelled, transition.From)
}

func TestPruningLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, indicators.Pruning, env.worker1.ID)

	_, err := env.tasks.StartTask(ctx, env.w2(), task.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	started, err := env.tasks.StartTask(ctx, env.w1(), task.ID, "arrived")
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, started.State)

	_, err = env.tasks.CompleteTask(ctx, env.w1(), task.ID, "", json.RawMessage(`{"tipo":"radical","plantasIntervenidas":0}`))
	var verr *IndicatorValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, indicators.Pruning, verr.ActivityType)
	assert.Len(t, verr.Fields, 2)

	current, err := env.tasks.GetTask(ctx, env.sup(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskInProgress, current.Task.State)

	completed, err := env.tasks.CompleteTask(ctx, env.w1(), task.ID, "done", json.RawMessage(pruningPayload))
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, completed.State)

	data := completed.Data.Data()
	assert.JSONEq(t, pruningPayload, string(data.Indicators))
	require.Contains(t, data.Summaries, "resumenPoda")
	assert.Equal(t, float64(25), data.Summaries["resumenPoda"]["plantas"])
	assert.Equal(t, "formacion", data.Summaries["resumenPoda"]["tipo"])

	_, err = env.tasks.VerifyTask(ctx, env.w1(), task.ID, "", false)
	assert.ErrorIs(t, err, ErrForbidden)

	verified, err := env.tasks.VerifyTask(ctx, env.sup(), task.ID, "ok", false)
	require.NoError(t, err)
	assert.Equal(t, models.TaskVerified, verified.State)
	assert.Len(t, env.notifier.byCategory(models.NotifyTaskVerified), 1)

	logs := env.stateLog(t, task.ID)
	states := make([]string, len(logs))
	for i, l := range logs {
		states[i] = l.State
		if i > 0 {
			assert.Greater(t, l.ID, logs[i-1].ID)
		}
	}
	assert.Equal(t, []string{models.TaskAssigned, models.TaskInProgress, models.TaskCompleted, models.TaskVerified}, states)

	_, err = env.tasks.CancelTask(ctx, env.sup(), task.ID, "late")
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.TaskVerified, transition.From)
	assert.Equal(t, models.TaskCancelled, transition.To)
}

func TestCompleteTask_Transitions(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	assigned := env.createTask(t, indicators.Pruning, env.worker1.ID)
	done, err := env.tasks.CompleteTask(ctx, env.w1(), assigned.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, done.State)

	pending := env.createTask(t, indicators.Pruning)
	_, err = env.tasks.CompleteTask(ctx, env.sup(), pending.ID, "", json.RawMessage(pruningPayload))
	var transition *InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.TaskPending, transition.From)

	_, err = env.tasks.StartTask(ctx, env.sup(), pending.ID, "")
	assert.ErrorAs(t, err, &transition)

	_, err = env.tasks.VerifyTask(ctx, env.sup(), pending.ID, "", false)
	assert.ErrorAs(t, err, &transition)
}

func TestVerifyTask_ConsumesReservations(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	urea := env.createItem(t, "UREA", models.CategoryConsumable, "kg", "10", "1")
	task := env.createTask(t, indicators.Nutrition, env.worker1.ID)

	_, err := env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{
		{ItemID: urea.ID, Quantity: dec("2500"), Unit: "g"},
	})
	require.NoError(t, err)
	require.Len(t, env.reservations(t, task.ID, models.ReservationReserved), 1)

	_, err = env.tasks.CompleteTask(ctx, env.w1(), task.ID, "", json.RawMessage(
		`{"fechaAplicacion":"2025-03-01","metodo":"edafica","plantasTratadas":40}`))
	require.NoError(t, err)

	_, err = env.tasks.VerifyTask(ctx, env.sup(), task.ID, "", false)
	require.NoError(t, err)

	assert.True(t, env.reloadItem(t, urea.ID).CurrentStock.Equal(dec("7.5")))
	assert.Empty(t, env.reservations(t, task.ID, models.ReservationReserved))
	consumed := env.reservations(t, task.ID, models.ReservationConsumed)
	require.Len(t, consumed, 1)

	movements, err := env.inventory.Movements(ctx, urea.ID)
	require.NoError(t, err)
	last := movements[len(movements)-1]
	assert.Equal(t, models.MovementOut, last.Type)
	assert.Equal(t, fmt.Sprint(consumed[0].ID), fmt.Sprint(last.Reference["reservationId"]))
	assert.Equal(t, fmt.Sprint(task.ID), fmt.Sprint(last.Reference["taskId"]))
	assert.NotEmpty(t, last.CorrelationID)
	assert.Empty(t, env.notifier.byCategory(models.NotifyLowStock))
}

func TestVerifyTask_LowStockRollsBackThenForce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	glifo := env.createItem(t, "GLIFO", models.CategoryConsumable, "l", "2", "1")
	task := env.createTask(t, indicators.Weeding, env.worker1.ID)

	_, err := env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{
		{ItemID: glifo.ID, Quantity: dec("10")},
	})
	require.NoError(t, err)
	_, err = env.tasks.CompleteTask(ctx, env.w1(), task.ID, "", json.RawMessage(
		`{"fecha":"2025-03-01","metodo":"quimico","coberturaPct":80}`))
	require.NoError(t, err)
	logsBefore := len(env.stateLog(t, task.ID))

	_, err = env.tasks.VerifyTask(ctx, env.sup(), task.ID, "", false)
	var low *LowStockError
	require.ErrorAs(t, err, &low)
	assert.True(t, low.Shortfall.Equal(dec("8")))

	current, err := env.tasks.GetTask(ctx, env.sup(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, current.Task.State)
	assert.Len(t, current.History, logsBefore)
	assert.True(t, env.reloadItem(t, glifo.ID).CurrentStock.Equal(dec("2")))
	assert.Len(t, env.reservations(t, task.ID, models.ReservationReserved), 1)

	verified, err := env.tasks.VerifyTask(ctx, env.sup(), task.ID, "forced", true)
	require.NoError(t, err)
	assert.Equal(t, models.TaskVerified, verified.State)
	assert.True(t, env.reloadItem(t, glifo.ID).CurrentStock.Equal(dec("-8")))

	movements, err := env.inventory.Movements(ctx, glifo.ID)
	require.NoError(t, err)
	assert.Equal(t, true, movements[len(movements)-1].Reference["forced"])

	alerts := env.notifier.byCategory(models.NotifyLowStock)
	require.Len(t, alerts, 1)
	assert.Equal(t, env.supervisor.ID, alerts[0].RecipientID)
}

func TestCancelTask_VoidsReservations(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	urea := env.createItem(t, "UREA", models.CategoryConsumable, "kg", "10", "0")
	task := env.createTask(t, indicators.Nutrition, env.worker1.ID, env.worker2.ID)

	_, err := env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{{ItemID: urea.ID, Quantity: dec("3")}})
	require.NoError(t, err)

	_, err = env.tasks.CancelTask(ctx, env.w1(), task.ID, "rain")
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := env.tasks.CancelTask(ctx, env.sup(), task.ID, "rain")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCancelled, cancelled.State)

	assert.Empty(t, env.reservations(t, task.ID, models.ReservationReserved))
	assert.Len(t, env.reservations(t, task.ID, models.ReservationVoided), 1)
	assert.True(t, env.reloadItem(t, urea.ID).CurrentStock.Equal(dec("10")))
	assert.Len(t, env.notifier.byCategory(models.NotifyTaskCancelled), 2)

	logs := env.stateLog(t, task.ID)
	assert.Equal(t, "rain", logs[len(logs)-1].Comment)

	_, err = env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, nil)
	var transition *InvalidTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestConfigureConsumables_ReplacesLines(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	urea := env.createItem(t, "UREA", models.CategoryConsumable, "kg", "10", "0")
	cal := env.createItem(t, "CAL", models.CategoryConsumable, "kg", "10", "0")
	machete := env.createItem(t, "MACHETE", models.CategoryTool, "unidad", "3", "0")
	task := env.createTask(t, indicators.Nutrition, env.worker1.ID)

	_, err := env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{
		{ItemID: urea.ID, Quantity: dec("1")},
		{ItemID: cal.ID, Quantity: dec("2")},
	})
	require.NoError(t, err)
	_, err = env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{
		{ItemID: cal.ID, Quantity: dec("4")},
	})
	require.NoError(t, err)

	detail, err := env.tasks.GetTask(ctx, env.sup(), task.ID)
	require.NoError(t, err)
	require.Len(t, detail.Consumables, 1)
	assert.Equal(t, cal.ID, detail.Consumables[0].ItemID)
	assert.Len(t, env.reservations(t, task.ID, models.ReservationReserved), 1)
	assert.Len(t, env.reservations(t, task.ID, models.ReservationVoided), 2)

	bad := [][]ConsumableInput{
		{{ItemID: machete.ID, Quantity: dec("1")}},
		{{ItemID: urea.ID, Quantity: dec("0")}},
		{{ItemID: urea.ID, Quantity: dec("1"), Unit: "l"}},
		{{ItemID: urea.ID, Quantity: dec("1")}, {ItemID: urea.ID, Quantity: dec("2")}},
	}
	for _, lines := range bad {
		_, err := env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, lines)
		assert.ErrorIs(t, err, ErrValidation)
	}
	_, err = env.tasks.ConfigureConsumables(ctx, env.sup(), task.ID, []ConsumableInput{{ItemID: 9999, Quantity: dec("1")}})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, env.reservations(t, task.ID, models.ReservationReserved), 1)
}

func TestConfigureRequirements(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	machete := env.createItem(t, "MACHETE", models.CategoryTool, "unidad", "3", "0")
	bomba := env.createItem(t, "BOMBA", models.CategoryEquipment, "unidad", "1", "0")
	task := env.createTask(t, indicators.Phytosanitary, env.worker1.ID)

	_, err := env.tasks.ConfigureRequirements(ctx, env.sup(), task.ID, []RequirementInput{
		{ItemID: machete.ID, Quantity: dec("2"), Category: models.RequirementTool},
		{ItemID: bomba.ID, Quantity: dec("1"), Category: models.RequirementEquipment},
	})
	require.NoError(t, err)

	_, err = env.tasks.ConfigureRequirements(ctx, env.sup(), task.ID, []RequirementInput{
		{ItemID: machete.ID, Quantity: dec("1"), Category: models.RequirementEquipment},
	})
	assert.ErrorIs(t, err, ErrValidation)

	detail, err := env.tasks.GetTask(ctx, env.w1(), task.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Requirements, 2)
	assert.Empty(t, detail.Reservations)
}

func TestGetTask_Visibility(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t, indicators.Pruning, env.worker1.ID)

	_, err := env.tasks.GetTask(ctx, env.w1(), task.ID)
	assert.NoError(t, err)
	_, err = env.tasks.GetTask(ctx, env.w2(), task.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.tasks.GetTask(ctx, env.sup(), 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasks(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	mine := env.createTask(t, indicators.Pruning, env.worker1.ID)
	env.createTask(t, indicators.Weeding, env.worker2.ID)
	env.createTask(t, indicators.Weeding)

	all, err := env.tasks.ListTasks(ctx, env.sup(), TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	weeding, err := env.tasks.ListTasks(ctx, env.sup(), TaskFilter{ActivityType: indicators.Weeding})
	require.NoError(t, err)
	assert.Len(t, weeding, 2)

	pending, err := env.tasks.ListTasks(ctx, env.tech(), TaskFilter{State: models.TaskPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	own, err := env.tasks.ListTasks(ctx, env.w1(), TaskFilter{WorkerID: env.worker2.ID})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.TaskPending, models.TaskAssigned))
	assert.True(t, CanTransition(models.TaskAssigned, models.TaskCompleted))
	assert.True(t, CanTransition(models.TaskCompleted, models.TaskCancelled))
	assert.False(t, CanTransition(models.TaskPending, models.TaskInProgress))
	assert.False(t, CanTransition(models.TaskVerified, models.TaskCancelled))
	assert.False(t, CanTransition(models.TaskCancelled, models.TaskAssigned))
	assert.False(t, CanTransition(models.TaskInProgress, models.TaskAssigned))
}
