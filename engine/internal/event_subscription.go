package internal

import (
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5/pgtype"
)

// EventSubscriptionEntity is a pending event of an execution.
//
// A compensate subscription references the compensation handler and the compensated activity.
// A timer subscription references the catching timer event and is due at a specific time.
type EventSubscriptionEntity struct {
	EntityState

	Id string

	ExecutionId       string
	ProcessInstanceId string

	ActivityId pgtype.Text
	CreatedAt  time.Time
	DueAt      pgtype.Timestamp
	ElementId  string
	EventType  engine.EventType
}

func (e *EventSubscriptionEntity) EntityId() string {
	return e.Id
}

func (e *EventSubscriptionEntity) EntityType() EntityType {
	return EntityEventSubscription
}

func (e *EventSubscriptionEntity) EventSubscription() engine.EventSubscription {
	return engine.EventSubscription{
		Id: e.Id,

		ExecutionId:       e.ExecutionId,
		ProcessInstanceId: e.ProcessInstanceId,

		ActivityId: e.ActivityId.String,
		CreatedAt:  e.CreatedAt,
		DueAt:      timeOrNil(e.DueAt),
		ElementId:  e.ElementId,
		EventType:  e.EventType,
	}
}

func (e *EventSubscriptionEntity) PersistentState() any {
	s := *e
	s.EntityState = EntityState{}
	return s
}

type EventSubscriptionRepository interface {
	InsertBatch([]*EventSubscriptionEntity) error

	// Select selects an event subscription by ID.
	//
	// If no event subscription is found, [pgx.ErrNoRows] is returned.
	Select(id string) (*EventSubscriptionEntity, error)

	// SelectByProcessInstanceId selects all event subscriptions of a process instance, ordered by ID.
	SelectByProcessInstanceId(processInstanceId string) ([]*EventSubscriptionEntity, error)

	// SelectDue selects timer subscriptions, which are due at the given time, ordered by due date.
	SelectDue(now time.Time, limit int) ([]*EventSubscriptionEntity, error)

	Delete(*EventSubscriptionEntity) (int64, error)
}

type getEventSubscriptionsCmd struct {
	cmd engine.GetEventSubscriptionsCmd
}

func (c getEventSubscriptionsCmd) Execute(cc *CommandContext) (any, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	if _, err := tree.LoadProcessInstance(c.cmd.ProcessInstanceId); err != nil {
		return nil, notFoundProcessInstance("failed to get event subscriptions", c.cmd.ProcessInstanceId, err)
	}

	subscriptions := tree.EventSubscriptions(c.cmd.ProcessInstanceId)

	results := make([]engine.EventSubscription, len(subscriptions))
	for i, subscription := range subscriptions {
		results[i] = subscription.EventSubscription()
	}
	return results, nil
}

func (c getEventSubscriptionsCmd) CommandName() string {
	return "GetEventSubscriptions"
}
