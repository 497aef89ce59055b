package services

import (
	"fmt"

	"github.com/h4ks-com/fieldops/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fieldops/services")

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role string
}

func ActorFromUser(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (a Actor) CanManage() bool {
	return a.Role == models.RoleSupervisor || a.Role == models.RoleTechnician
}

func requireManager(actor Actor, action string) error {
	if !actor.CanManage() {
		return fmt.Errorf("%w: role %q cannot %s", ErrForbidden, actor.Role, action)
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
