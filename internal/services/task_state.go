package services

import "github.com/h4ks-com/fieldops/internal/models"

var transitions = map[string][]string{
	models.TaskPending:    {models.TaskAssigned, models.TaskCancelled},
	models.TaskAssigned:   {models.TaskInProgress, models.TaskCompleted, models.TaskCancelled},
	models.TaskInProgress: {models.TaskCompleted, models.TaskCancelled},
	models.TaskCompleted:  {models.TaskVerified, models.TaskCancelled},
}

// CanTransition reports whether a task may move from one state to another.
// verified and cancelled have no outgoing edges.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to string) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

func isTerminal(state string) bool {
	return state == models.TaskVerified || state == models.TaskCancelled
}
