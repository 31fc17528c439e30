package internal

import (
	"fmt"
	"slices"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5"
)

func openEntityCache(cc *CommandContext) (Session, error) {
	tx := cc.Tx()
	if tx == nil {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to open entity cache",
			Detail: "command context has no transaction",
		}
	}
	return NewEntityCache(tx, cc.Options().InsertBatchSize), nil
}

func NewEntityCache(tx Tx, insertBatchSize int) *EntityCache {
	c := EntityCache{
		tx:              tx,
		insertBatchSize: insertBatchSize,

		entities:  make(map[EntityType]map[string]Entity, len(entityTypes)),
		ids:       make(map[EntityType][]string, len(entityTypes)),
		snapshots: make(map[EntityType]map[string]any, len(entityTypes)),
		deleted:   make(map[EntityType][]Entity, len(entityTypes)),
	}

	for _, entityType := range entityTypes {
		c.entities[entityType] = make(map[string]Entity)
		c.snapshots[entityType] = make(map[string]any)
	}

	return &c
}

// EntityCache is the unit of work of a command. It tracks inserted, loaded, updated and deleted entities and writes
// all pending changes on flush.
type EntityCache struct {
	tx              Tx
	insertBatchSize int

	entities  map[EntityType]map[string]Entity
	ids       map[EntityType][]string // IDs in order of registration
	snapshots map[EntityType]map[string]any
	deleted   map[EntityType][]Entity // in order of deletion
}

// All returns all entities of a type, which are not deleted, in order of registration.
func (c *EntityCache) All(entityType EntityType) []Entity {
	entities := c.entities[entityType]

	results := make([]Entity, 0, len(entities))
	for _, id := range c.ids[entityType] {
		if entity, ok := entities[id]; ok {
			results = append(results, entity)
		}
	}
	return results
}

// Cache registers a loaded entity and snapshots its persistent state.
// If an entity with the same ID is already registered, the registered entity is returned.
func (c *EntityCache) Cache(entity Entity) Entity {
	entityType := entity.EntityType()

	if cached, ok := c.entities[entityType][entity.EntityId()]; ok {
		return cached
	}
	for _, deleted := range c.deleted[entityType] {
		if deleted.EntityId() == entity.EntityId() {
			return deleted
		}
	}

	c.put(entity)
	c.snapshots[entityType][entity.EntityId()] = entity.PersistentState()
	return entity
}

func (c *EntityCache) Close() error {
	for _, entityType := range entityTypes {
		clear(c.entities[entityType])
		clear(c.snapshots[entityType])
	}
	clear(c.ids)
	clear(c.deleted)
	return nil
}

// Delete marks an entity as deleted. An entity, which was inserted within the same command, is discarded.
func (c *EntityCache) Delete(entity Entity) {
	entityType := entity.EntityType()
	id := entity.EntityId()

	if _, ok := c.entities[entityType][id]; !ok {
		return
	}

	delete(c.entities[entityType], id)
	c.ids[entityType] = slices.DeleteFunc(c.ids[entityType], func(v string) bool { return v == id })

	state := entity.state()
	if state.isInserted {
		state.isInserted = false
		return
	}

	state.isDeleted = true
	c.deleted[entityType] = append(c.deleted[entityType], entity)
}

// Flush writes all pending changes: inserts first, then updates, then deletes.
func (c *EntityCache) Flush() error {
	for _, entityType := range entityTypes {
		var inserted []Entity
		for _, entity := range c.All(entityType) {
			if entity.state().isInserted {
				inserted = append(inserted, entity)
			}
		}

		for batch := range slices.Chunk(inserted, c.insertBatchSize) {
			if err := c.insertBatch(entityType, batch); err != nil {
				return err
			}
		}

		for _, entity := range inserted {
			entity.state().isInserted = false
			c.snapshots[entityType][entity.EntityId()] = entity.PersistentState()
		}
	}

	for _, entityType := range entityTypes {
		for _, entity := range c.All(entityType) {
			snapshot := c.snapshots[entityType][entity.EntityId()]
			if entity.PersistentState() == snapshot {
				continue
			}

			entity.state().isUpdated = true
			if err := c.update(entity); err != nil {
				return err
			}
			entity.state().isUpdated = false

			c.snapshots[entityType][entity.EntityId()] = entity.PersistentState()
		}
	}

	for i := len(entityTypes) - 1; i >= 0; i-- {
		entityType := entityTypes[i]
		for _, entity := range c.deleted[entityType] {
			if err := c.delete(entity); err != nil {
				return err
			}
		}
		c.deleted[entityType] = nil
	}

	return nil
}

// Get returns a registered entity, which is not deleted.
func (c *EntityCache) Get(entityType EntityType, id string) (Entity, bool) {
	entity, ok := c.entities[entityType][id]
	return entity, ok
}

// Insert registers a new entity, which is inserted on flush.
func (c *EntityCache) Insert(entity Entity) {
	entity.state().isInserted = true
	c.put(entity)
}

func (c *EntityCache) put(entity Entity) {
	entityType := entity.EntityType()
	if _, ok := c.entities[entityType][entity.EntityId()]; !ok {
		c.ids[entityType] = append(c.ids[entityType], entity.EntityId())
	}
	c.entities[entityType][entity.EntityId()] = entity
}

func (c *EntityCache) insertBatch(entityType EntityType, batch []Entity) error {
	var err error
	switch entityType {
	case EntityProcess:
		err = c.tx.Processes().InsertBatch(castEntities[*ProcessEntity](batch))
		if err == pgx.ErrNoRows {
			process := batch[0].(*ProcessEntity)
			return engine.Error{
				Type:   engine.ErrorConflict,
				Title:  "failed to create process",
				Detail: fmt.Sprintf("process %s:%s has been created concurrently", process.BpmnProcessId, process.Version),
			}
		}
	case EntityExecution:
		err = c.tx.Executions().InsertBatch(castEntities[*ExecutionEntity](batch))
	case EntityVariable:
		err = c.tx.Variables().InsertBatch(castEntities[*VariableEntity](batch))
	case EntityEventSubscription:
		err = c.tx.EventSubscriptions().InsertBatch(castEntities[*EventSubscriptionEntity](batch))
	}
	if err != nil {
		return fmt.Errorf("failed to insert %d %s entities: %w", len(batch), entityType, err)
	}
	return nil
}

func (c *EntityCache) update(entity Entity) error {
	revisioned, ok := entity.(Revisioned)
	if !ok {
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to flush entity cache",
			Detail: fmt.Sprintf("%s %s is insert only, but has been changed", entity.EntityType(), entity.EntityId()),
		}
	}

	var (
		n   int64
		err error
	)
	switch e := entity.(type) {
	case *ExecutionEntity:
		n, err = c.tx.Executions().Update(e)
	case *VariableEntity:
		n, err = c.tx.Variables().Update(e)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", entity.EntityType(), entity.EntityId(), err)
	}
	if n == 0 {
		return newOptimisticLockingError(entity)
	}

	revisioned.SetRevision(revisioned.RevisionNext())
	return nil
}

func (c *EntityCache) delete(entity Entity) error {
	var (
		n   int64
		err error
	)
	switch e := entity.(type) {
	case *ExecutionEntity:
		n, err = c.tx.Executions().Delete(e)
	case *VariableEntity:
		n, err = c.tx.Variables().Delete(e)
	case *EventSubscriptionEntity:
		n, err = c.tx.EventSubscriptions().Delete(e)
	default:
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to flush entity cache",
			Detail: fmt.Sprintf("%s %s cannot be deleted", entity.EntityType(), entity.EntityId()),
		}
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", entity.EntityType(), entity.EntityId(), err)
	}
	if _, ok := entity.(Revisioned); ok && n == 0 {
		return newOptimisticLockingError(entity)
	}
	return nil
}

func castEntities[T Entity](entities []Entity) []T {
	results := make([]T, len(entities))
	for i, entity := range entities {
		results[i] = entity.(T)
	}
	return results
}

func newOptimisticLockingError(entity Entity) error {
	return engine.Error{
		Type:           engine.ErrorOptimisticLocking,
		Title:          "optimistic locking conflict",
		Detail:         fmt.Sprintf("%s %s was updated or deleted by another transaction", entity.EntityType(), entity.EntityId()),
		ReduceLogLevel: true,
	}
}
