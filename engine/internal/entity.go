package internal

// EntityType determines the order, in which pending changes are flushed.
// Inserts and updates are flushed in ascending, deletes in descending order.
type EntityType int

const (
	EntityProcess EntityType = iota + 1
	EntityExecution
	EntityVariable
	EntityEventSubscription
)

func (v EntityType) String() string {
	switch v {
	case EntityProcess:
		return "process"
	case EntityExecution:
		return "execution"
	case EntityVariable:
		return "variable"
	case EntityEventSubscription:
		return "event subscription"
	default:
		return "unknown"
	}
}

var entityTypes = []EntityType{
	EntityProcess,
	EntityExecution,
	EntityVariable,
	EntityEventSubscription,
}

// Entity is a durable record, tracked by the [EntityCache].
type Entity interface {
	EntityId() string
	EntityType() EntityType

	// PersistentState returns a comparable snapshot of all persisted fields, used to detect changes.
	PersistentState() any

	state() *EntityState
}

// Revisioned is an entity, whose updates and deletes are conditioned on its revision.
type Revisioned interface {
	Entity

	CurrentRevision() int
	SetRevision(int)
	RevisionNext() int
}

// EntityState describes the pending change of an entity, relative to the storage.
type EntityState struct {
	isInserted bool
	isUpdated  bool
	isDeleted  bool
}

func (s *EntityState) IsDeleted() bool {
	return s.isDeleted
}

func (s *EntityState) IsInserted() bool {
	return s.isInserted
}

func (s *EntityState) IsUpdated() bool {
	return s.isUpdated
}

func (s *EntityState) state() *EntityState {
	return s
}
