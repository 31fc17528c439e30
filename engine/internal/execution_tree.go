package internal

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5/pgtype"
)

func openExecutionTree(cc *CommandContext) (Session, error) {
	cache, err := cc.EntityCache()
	if err != nil {
		return nil, err
	}
	return &ExecutionTree{
		cc:     cc,
		cache:  cache,
		loaded: make(map[string]bool),
	}, nil
}

// ExecutionTree provides the executions, variables and event subscriptions of process instances.
//
// Executions are held by the entity cache and are addressed by ID. Parent and child relations are derived from the
// parent ID. Callers receive copies, all changes are made through the tree.
type ExecutionTree struct {
	cc     *CommandContext
	cache  *EntityCache
	loaded map[string]bool // IDs of process instances, whose entities are cached
}

func (t *ExecutionTree) Close() error {
	clear(t.loaded)
	return nil
}

func (t *ExecutionTree) Flush() error {
	return nil
}

// Load loads the process instance of an execution and returns the execution.
//
// If no execution is found, [pgx.ErrNoRows] is returned.
func (t *ExecutionTree) Load(executionId string) (ExecutionEntity, error) {
	if execution, ok := t.execution(executionId); ok {
		if err := t.load(execution.ProcessInstanceId); err != nil {
			return ExecutionEntity{}, err
		}
		return *execution, nil
	}

	selected, err := t.cc.Tx().Executions().Select(executionId)
	if err != nil {
		return ExecutionEntity{}, err
	}

	if err := t.load(selected.ProcessInstanceId); err != nil {
		return ExecutionEntity{}, err
	}

	execution, ok := t.execution(executionId)
	if !ok {
		return ExecutionEntity{}, fmt.Errorf("execution %s has been deleted", executionId)
	}
	return *execution, nil
}

// LoadProcessInstance loads a process instance and returns its root execution.
//
// If no process instance is found, [pgx.ErrNoRows] is returned.
func (t *ExecutionTree) LoadProcessInstance(processInstanceId string) (ExecutionEntity, error) {
	root, err := t.Load(processInstanceId)
	if err != nil {
		return ExecutionEntity{}, err
	}
	if !root.IsProcessInstance() {
		return ExecutionEntity{}, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to load process instance",
			Detail: fmt.Sprintf("execution %s is not a process instance", processInstanceId),
		}
	}
	return root, nil
}

func (t *ExecutionTree) load(processInstanceId string) error {
	if t.loaded[processInstanceId] {
		return nil
	}

	tx := t.cc.Tx()

	executions, err := tx.Executions().SelectByProcessInstanceId(processInstanceId)
	if err != nil {
		return err
	}
	for _, execution := range executions {
		t.cache.Cache(execution)
	}

	variables, err := tx.Variables().SelectByProcessInstanceId(processInstanceId)
	if err != nil {
		return err
	}
	for _, variable := range variables {
		t.cache.Cache(variable)
	}

	subscriptions, err := tx.EventSubscriptions().SelectByProcessInstanceId(processInstanceId)
	if err != nil {
		return err
	}
	for _, subscription := range subscriptions {
		t.cache.Cache(subscription)
	}

	t.loaded[processInstanceId] = true
	return nil
}

// CreateProcessInstance creates the root execution of a new process instance.
func (t *ExecutionTree) CreateProcessInstance(process *ProcessEntity, businessKey string, tenantId string) ExecutionEntity {
	id := newId()

	root := ExecutionEntity{
		Id: id,

		ProcessId:             process.Id,
		ProcessInstanceId:     id,
		RootProcessInstanceId: id,

		BusinessKey: pgtype.Text{String: businessKey, Valid: businessKey != ""},
		CreatedAt:   t.cc.Time(),
		ElementId:   process.BpmnProcessId,
		TenantId:    pgtype.Text{String: tenantId, Valid: tenantId != ""},

		IsActive: true,
		IsScope:  true,
	}

	t.cache.Insert(&root)
	t.loaded[id] = true
	return root
}

// CreateChildExecution creates an active child, which inherits the process, process instance and current element.
func (t *ExecutionTree) CreateChildExecution(parentId string) ExecutionEntity {
	parent := t.mustExecution(parentId)

	child := ExecutionEntity{
		Id: newId(),

		ParentId:              pgtype.Text{String: parent.Id, Valid: true},
		ProcessId:             parent.ProcessId,
		ProcessInstanceId:     parent.ProcessInstanceId,
		RootProcessInstanceId: parent.RootProcessInstanceId,

		BusinessKey: parent.BusinessKey,
		CreatedAt:   t.cc.Time(),
		ElementId:   parent.ElementId,
		TenantId:    parent.TenantId,

		IsActive: true,
	}

	t.cache.Insert(&child)
	return child
}

// Children returns the children of an execution in order of creation.
func (t *ExecutionTree) Children(executionId string) []ExecutionEntity {
	var children []ExecutionEntity
	for _, entity := range t.cache.All(EntityExecution) {
		execution := entity.(*ExecutionEntity)
		if execution.ParentId.Valid && execution.ParentId.String == executionId {
			children = append(children, *execution)
		}
	}
	return children
}

// DeleteSubtree deletes an execution, its descendants and all of their variables and event subscriptions.
// Descendants are deleted before their ancestors.
func (t *ExecutionTree) DeleteSubtree(executionId string) {
	for _, child := range t.Children(executionId) {
		t.DeleteSubtree(child.Id)
	}

	for _, entity := range t.cache.All(EntityEventSubscription) {
		if entity.(*EventSubscriptionEntity).ExecutionId == executionId {
			t.cache.Delete(entity)
		}
	}
	for _, entity := range t.cache.All(EntityVariable) {
		if entity.(*VariableEntity).ExecutionId == executionId {
			t.cache.Delete(entity)
		}
	}

	if execution, ok := t.execution(executionId); ok {
		t.cache.Delete(execution)
	}
}

// End marks the root execution of a process instance as ended.
func (t *ExecutionTree) End(processInstanceId string) {
	root := t.mustExecution(processInstanceId)
	root.IsEnded = true
	root.EndedAt = pgtype.Timestamp{Time: t.cc.Time(), Valid: true}
}

// Executions returns all executions of a process instance in order of creation.
func (t *ExecutionTree) Executions(processInstanceId string) []ExecutionEntity {
	var executions []ExecutionEntity
	for _, entity := range t.cache.All(EntityExecution) {
		execution := entity.(*ExecutionEntity)
		if execution.ProcessInstanceId == processInstanceId {
			executions = append(executions, *execution)
		}
	}
	return executions
}

func (t *ExecutionTree) Get(executionId string) (ExecutionEntity, bool) {
	execution, ok := t.execution(executionId)
	if !ok {
		return ExecutionEntity{}, false
	}
	return *execution, true
}

// IsMultiInstanceInstance reports whether an execution is an instance of a multi-instance activity.
func (t *ExecutionTree) IsMultiInstanceInstance(executionId string) bool {
	execution := t.mustExecution(executionId)

	parent, ok := t.Parent(executionId)
	return ok && parent.IsMultiInstanceRoot && parent.ElementId == execution.ElementId
}

func (t *ExecutionTree) Parent(executionId string) (ExecutionEntity, bool) {
	execution := t.mustExecution(executionId)
	if !execution.ParentId.Valid {
		return ExecutionEntity{}, false
	}
	return t.Get(execution.ParentId.String)
}

// RefreshConcurrency marks the walking children of an execution as concurrent, if there is more than one.
func (t *ExecutionTree) RefreshConcurrency(executionId string) {
	walkers := t.Walkers(executionId)
	for _, walker := range walkers {
		t.mustExecution(walker.Id).IsConcurrent = len(walkers) > 1
	}
}

// Reparent moves an execution and its subtree below another execution.
func (t *ExecutionTree) Reparent(executionId string, parentId string) {
	t.mustExecution(parentId)
	t.mustExecution(executionId).ParentId = pgtype.Text{String: parentId, Valid: true}
}

// Root returns the root execution of the process instance of an execution.
func (t *ExecutionTree) Root(executionId string) ExecutionEntity {
	return *t.mustExecution(t.mustExecution(executionId).ProcessInstanceId)
}

// Scope returns the nearest execution, which is a scope, starting with the execution itself.
func (t *ExecutionTree) Scope(executionId string) ExecutionEntity {
	execution := t.mustExecution(executionId)
	for !execution.IsScope && execution.ParentId.Valid {
		execution = t.mustExecution(execution.ParentId.String)
	}
	return *execution
}

func (t *ExecutionTree) SetActive(executionId string, active bool) {
	t.mustExecution(executionId).IsActive = active
}

func (t *ExecutionTree) SetElement(executionId string, elementId string) {
	t.mustExecution(executionId).ElementId = elementId
}

func (t *ExecutionTree) SetEventScope(executionId string, eventScope bool) {
	t.mustExecution(executionId).IsEventScope = eventScope
}

func (t *ExecutionTree) SetMultiInstanceRoot(executionId string, multiInstanceRoot bool) {
	t.mustExecution(executionId).IsMultiInstanceRoot = multiInstanceRoot
}

func (t *ExecutionTree) SetScope(executionId string, scope bool) {
	t.mustExecution(executionId).IsScope = scope
}

// Walkers returns the children of an execution, which are not event scopes.
func (t *ExecutionTree) Walkers(executionId string) []ExecutionEntity {
	return slices.DeleteFunc(t.Children(executionId), func(e ExecutionEntity) bool {
		return e.IsEventScope
	})
}

// LockExecution records the owner of a process instance, which is exclusively processed.
func (t *ExecutionTree) LockExecution(executionId string, owner string) {
	execution := t.mustExecution(executionId)
	execution.LockOwner = pgtype.Text{String: owner, Valid: true}
	execution.LockTime = pgtype.Timestamp{Time: t.cc.Time(), Valid: true}
}

func (t *ExecutionTree) UnlockExecution(executionId string) {
	execution := t.mustExecution(executionId)
	execution.LockOwner = pgtype.Text{}
	execution.LockTime = pgtype.Timestamp{}
}

// Variable returns the value of a variable, which is visible from an execution.
// The nearest execution, which holds a variable with the name, wins.
func (t *ExecutionTree) Variable(executionId string, name string) (any, bool) {
	variable := t.lookupVariable(executionId, name)
	if variable == nil {
		return nil, false
	}
	return t.decodeValue(variable), true
}

// VariablesOf returns all variables, which are visible from an execution.
// Variables of inner executions shadow variables of outer executions with the same name.
func (t *ExecutionTree) VariablesOf(executionId string) map[string]any {
	variables := make(map[string]any)

	execution, ok := t.execution(executionId)
	for ok {
		for _, variable := range t.localVariables(execution.Id) {
			if _, shadowed := variables[variable.Name]; !shadowed {
				variables[variable.Name] = t.decodeValue(variable)
			}
		}
		if !execution.ParentId.Valid {
			break
		}
		execution, ok = t.execution(execution.ParentId.String)
	}

	return variables
}

// VariableLocal returns the value of a variable, held by the execution itself.
func (t *ExecutionTree) VariableLocal(executionId string, name string) (any, bool) {
	for _, variable := range t.localVariables(executionId) {
		if variable.Name == name {
			return t.decodeValue(variable), true
		}
	}
	return nil, false
}

// decodeValue decodes the JSON value of a variable. A value, which cannot be decoded, is logged and treated as nil.
func (t *ExecutionTree) decodeValue(variable *VariableEntity) any {
	value, err := unmarshalValue(variable.Value)
	if err != nil {
		t.cc.Logger().Error("failed to decode variable",
			"variable", variable.Name,
			"execution_id", variable.ExecutionId,
			"error", err,
		)
	}
	return value
}

// SetVariable updates a variable at the nearest execution, which holds it.
// If no execution holds the variable, it is created at the root execution.
func (t *ExecutionTree) SetVariable(executionId string, name string, value any) error {
	if variable := t.lookupVariable(executionId, name); variable != nil {
		return t.SetVariableLocal(variable.ExecutionId, name, value)
	}
	return t.SetVariableLocal(t.mustExecution(executionId).ProcessInstanceId, name, value)
}

// SetVariableLocal creates or updates a variable, held by the execution itself.
func (t *ExecutionTree) SetVariableLocal(executionId string, name string, value any) error {
	execution := t.mustExecution(executionId)

	encoded, err := marshalValue(value)
	if err != nil {
		return err
	}

	for _, variable := range t.localVariables(executionId) {
		if variable.Name == name {
			variable.Value = encoded
			return nil
		}
	}

	t.cache.Insert(&VariableEntity{
		Id: newId(),

		ExecutionId:       execution.Id,
		ProcessInstanceId: execution.ProcessInstanceId,

		Name:  name,
		Value: encoded,
	})
	return nil
}

// RemoveVariable removes a variable from the nearest execution, which holds it.
func (t *ExecutionTree) RemoveVariable(executionId string, name string) {
	if variable := t.lookupVariable(executionId, name); variable != nil {
		t.cache.Delete(variable)
	}
}

func (t *ExecutionTree) RemoveVariableLocal(executionId string, name string) {
	for _, variable := range t.localVariables(executionId) {
		if variable.Name == name {
			t.cache.Delete(variable)
		}
	}
}

// CreateEventSubscription creates a subscription of an execution.
func (t *ExecutionTree) CreateEventSubscription(executionId string, eventType engine.EventType, elementId string, activityId string, dueAt *time.Time) EventSubscriptionEntity {
	execution := t.mustExecution(executionId)

	subscription := EventSubscriptionEntity{
		Id: newId(),

		ExecutionId:       execution.Id,
		ProcessInstanceId: execution.ProcessInstanceId,

		ActivityId: pgtype.Text{String: activityId, Valid: activityId != ""},
		CreatedAt:  t.cc.Time(),
		ElementId:  elementId,
		EventType:  eventType,
	}
	if dueAt != nil {
		subscription.DueAt = pgtype.Timestamp{Time: *dueAt, Valid: true}
	}

	t.cache.Insert(&subscription)
	return subscription
}

func (t *ExecutionTree) DeleteEventSubscription(subscriptionId string) {
	if entity, ok := t.cache.Get(EntityEventSubscription, subscriptionId); ok {
		t.cache.Delete(entity)
	}
}

// EventSubscription returns a subscription, which belongs to a loaded process instance.
func (t *ExecutionTree) EventSubscription(subscriptionId string) (EventSubscriptionEntity, bool) {
	entity, ok := t.cache.Get(EntityEventSubscription, subscriptionId)
	if !ok {
		return EventSubscriptionEntity{}, false
	}
	return *entity.(*EventSubscriptionEntity), true
}

// EventSubscriptions returns all subscriptions of a process instance in order of creation.
func (t *ExecutionTree) EventSubscriptions(processInstanceId string) []EventSubscriptionEntity {
	return t.filterEventSubscriptions(func(s *EventSubscriptionEntity) bool {
		return s.ProcessInstanceId == processInstanceId
	})
}

// EventSubscriptionsOf returns the subscriptions of an execution in order of creation.
func (t *ExecutionTree) EventSubscriptionsOf(executionId string) []EventSubscriptionEntity {
	return t.filterEventSubscriptions(func(s *EventSubscriptionEntity) bool {
		return s.ExecutionId == executionId
	})
}

func (t *ExecutionTree) filterEventSubscriptions(f func(*EventSubscriptionEntity) bool) []EventSubscriptionEntity {
	var subscriptions []EventSubscriptionEntity
	for _, entity := range t.cache.All(EntityEventSubscription) {
		if subscription := entity.(*EventSubscriptionEntity); f(subscription) {
			subscriptions = append(subscriptions, *subscription)
		}
	}
	return subscriptions
}

func (t *ExecutionTree) execution(executionId string) (*ExecutionEntity, bool) {
	entity, ok := t.cache.Get(EntityExecution, executionId)
	if !ok {
		return nil, false
	}
	return entity.(*ExecutionEntity), true
}

func (t *ExecutionTree) localVariables(executionId string) []*VariableEntity {
	var variables []*VariableEntity
	for _, entity := range t.cache.All(EntityVariable) {
		if variable := entity.(*VariableEntity); variable.ExecutionId == executionId {
			variables = append(variables, variable)
		}
	}
	return variables
}

func (t *ExecutionTree) lookupVariable(executionId string, name string) *VariableEntity {
	execution, ok := t.execution(executionId)
	for ok {
		for _, variable := range t.localVariables(execution.Id) {
			if variable.Name == name {
				return variable
			}
		}
		if !execution.ParentId.Valid {
			break
		}
		execution, ok = t.execution(execution.ParentId.String)
	}
	return nil
}

// mustExecution returns a cached execution. An unknown ID is a programming error.
func (t *ExecutionTree) mustExecution(executionId string) *ExecutionEntity {
	execution, ok := t.execution(executionId)
	if !ok {
		panic(fmt.Sprintf("execution %s is not part of the execution tree", executionId))
	}
	return execution
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
