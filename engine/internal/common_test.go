package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
	"github.com/jackc/pgx/v5"
)

var errTransient = errors.New("serialization failure")

func mustCreateModel(t *testing.T, fileName string, bpmnProcessId string) (*model.Model, *model.Element) {
	fileName = "../../test/bpmn/" + fileName

	bpmnFile, err := os.Open(fileName)
	if err != nil {
		t.Fatalf("failed to open BPMN file %s: %v", fileName, err)
	}

	defer bpmnFile.Close()

	bpmnModel, err := model.New(bpmnFile)
	if err != nil {
		t.Fatalf("failed to parse BPMN XML: %v", err)
	}

	processElement, err := bpmnModel.ProcessById(bpmnProcessId)
	if err != nil {
		t.Fatal(err.Error())
	}

	return bpmnModel, processElement
}

func newTestOptions() engine.Options {
	return engine.Options{
		EngineId:            engine.DefaultEngineId,
		ExpressionEvaluator: engine.NewExpressionEvaluator(),
		InsertBatchSize:     2,
		LockPollInterval:    time.Millisecond,
		LockWaitTimeout:     20 * time.Millisecond,
		Logger:              engine.NewLogger(io.Discard, "error"),
		RetryEnabled:        true,
		RetryInterval:       time.Millisecond,
		RetryLimit:          3,
	}
}

func mustCreateRuntime(t *testing.T, config RuntimeConfig) *Runtime {
	if config.Options.EngineId == "" {
		config.Options = newTestOptions()
	}
	if config.Store == nil {
		config.Store = newFakeStore()
	}
	if config.LockManager == nil {
		config.LockManager = newFakeLockManager()
	}

	runtime, err := NewRuntime(config)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	return runtime
}

// fakeStore keeps entities in maps, without isolation between transactions.
type fakeStore struct {
	mutex sync.Mutex

	executions    map[string]*ExecutionEntity
	variables     map[string]*VariableEntity
	subscriptions map[string]*EventSubscriptionEntity

	begins    int
	commits   int
	rollbacks int

	executionInserts  int
	executionUpdates  int
	executionConflict bool // lets updates and deletes of executions affect no rows
	selectDueCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		executions:    make(map[string]*ExecutionEntity),
		variables:     make(map[string]*VariableEntity),
		subscriptions: make(map[string]*EventSubscriptionEntity),
	}
}

func (s *fakeStore) Begin(_ context.Context) (Tx, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.begins++
	return fakeTx{s: s}, nil
}

func (s *fakeStore) Close() {
}

// transientFakeStore reports errTransient as transient.
type transientFakeStore struct {
	*fakeStore
}

func (s transientFakeStore) IsTransient(err error) bool {
	return errors.Is(err, errTransient)
}

type fakeTx struct {
	s *fakeStore
}

func (tx fakeTx) Commit() error {
	tx.s.mutex.Lock()
	defer tx.s.mutex.Unlock()

	tx.s.commits++
	return nil
}

func (tx fakeTx) Rollback() error {
	tx.s.mutex.Lock()
	defer tx.s.mutex.Unlock()

	tx.s.rollbacks++
	return nil
}

func (tx fakeTx) EventSubscriptions() EventSubscriptionRepository {
	return fakeEventSubscriptionRepository(tx)
}

func (tx fakeTx) Executions() ExecutionRepository {
	return fakeExecutionRepository(tx)
}

func (tx fakeTx) Processes() ProcessRepository {
	return fakeProcessRepository(tx)
}

func (tx fakeTx) Variables() VariableRepository {
	return fakeVariableRepository(tx)
}

type fakeExecutionRepository struct {
	s *fakeStore
}

func (r fakeExecutionRepository) InsertBatch(entities []*ExecutionEntity) error {
	r.s.executionInserts++
	for _, entity := range entities {
		stored := *entity
		stored.EntityState = EntityState{}
		r.s.executions[entity.Id] = &stored
	}
	return nil
}

func (r fakeExecutionRepository) Select(id string) (*ExecutionEntity, error) {
	stored, ok := r.s.executions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	entity := *stored
	return &entity, nil
}

func (r fakeExecutionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*ExecutionEntity, error) {
	var results []*ExecutionEntity
	for _, stored := range r.s.executions {
		if stored.ProcessInstanceId == processInstanceId {
			entity := *stored
			results = append(results, &entity)
		}
	}
	slices.SortFunc(results, func(a *ExecutionEntity, b *ExecutionEntity) int {
		return strings.Compare(a.Id, b.Id)
	})
	return results, nil
}

func (r fakeExecutionRepository) Update(entity *ExecutionEntity) (int64, error) {
	r.s.executionUpdates++

	stored, ok := r.s.executions[entity.Id]
	if !ok || r.s.executionConflict || stored.Revision != entity.Revision {
		return 0, nil
	}

	updated := *entity
	updated.EntityState = EntityState{}
	updated.Revision = entity.RevisionNext()
	r.s.executions[entity.Id] = &updated
	return 1, nil
}

func (r fakeExecutionRepository) Delete(entity *ExecutionEntity) (int64, error) {
	stored, ok := r.s.executions[entity.Id]
	if !ok || r.s.executionConflict || stored.Revision != entity.Revision {
		return 0, nil
	}

	delete(r.s.executions, entity.Id)
	return 1, nil
}

type fakeVariableRepository struct {
	s *fakeStore
}

func (r fakeVariableRepository) InsertBatch(entities []*VariableEntity) error {
	for _, entity := range entities {
		stored := *entity
		stored.EntityState = EntityState{}
		r.s.variables[entity.Id] = &stored
	}
	return nil
}

func (r fakeVariableRepository) SelectByProcessInstanceId(processInstanceId string) ([]*VariableEntity, error) {
	var results []*VariableEntity
	for _, stored := range r.s.variables {
		if stored.ProcessInstanceId == processInstanceId {
			entity := *stored
			results = append(results, &entity)
		}
	}
	slices.SortFunc(results, func(a *VariableEntity, b *VariableEntity) int {
		return strings.Compare(a.Id, b.Id)
	})
	return results, nil
}

func (r fakeVariableRepository) Update(entity *VariableEntity) (int64, error) {
	stored, ok := r.s.variables[entity.Id]
	if !ok || stored.Revision != entity.Revision {
		return 0, nil
	}

	updated := *entity
	updated.EntityState = EntityState{}
	updated.Revision = entity.RevisionNext()
	r.s.variables[entity.Id] = &updated
	return 1, nil
}

func (r fakeVariableRepository) Delete(entity *VariableEntity) (int64, error) {
	stored, ok := r.s.variables[entity.Id]
	if !ok || stored.Revision != entity.Revision {
		return 0, nil
	}

	delete(r.s.variables, entity.Id)
	return 1, nil
}

type fakeEventSubscriptionRepository struct {
	s *fakeStore
}

func (r fakeEventSubscriptionRepository) InsertBatch(entities []*EventSubscriptionEntity) error {
	for _, entity := range entities {
		stored := *entity
		stored.EntityState = EntityState{}
		r.s.subscriptions[entity.Id] = &stored
	}
	return nil
}

func (r fakeEventSubscriptionRepository) Select(id string) (*EventSubscriptionEntity, error) {
	stored, ok := r.s.subscriptions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	entity := *stored
	return &entity, nil
}

func (r fakeEventSubscriptionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*EventSubscriptionEntity, error) {
	var results []*EventSubscriptionEntity
	for _, stored := range r.s.subscriptions {
		if stored.ProcessInstanceId == processInstanceId {
			entity := *stored
			results = append(results, &entity)
		}
	}
	return results, nil
}

func (r fakeEventSubscriptionRepository) SelectDue(_ time.Time, _ int) ([]*EventSubscriptionEntity, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	r.s.selectDueCalls++
	return nil, nil
}

func (r fakeEventSubscriptionRepository) Delete(entity *EventSubscriptionEntity) (int64, error) {
	if _, ok := r.s.subscriptions[entity.Id]; !ok {
		return 0, nil
	}

	delete(r.s.subscriptions, entity.Id)
	return 1, nil
}

type fakeProcessRepository struct {
	s *fakeStore
}

func (r fakeProcessRepository) InsertBatch([]*ProcessEntity) error {
	return nil
}

func (r fakeProcessRepository) Select(string) (*ProcessEntity, error) {
	return nil, pgx.ErrNoRows
}

func (r fakeProcessRepository) SelectByBpmnProcessIdAndVersion(string, string) (*ProcessEntity, error) {
	return nil, pgx.ErrNoRows
}

type fakeLockManager struct {
	mutex sync.Mutex
	held  map[string]bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{held: make(map[string]bool)}
}

func (m *fakeLockManager) TryAcquire(_ context.Context, name string) (Lock, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.held[name] {
		return nil, false, nil
	}

	m.held[name] = true
	return fakeLock{m: m, name: name}, true, nil
}

type fakeLock struct {
	m    *fakeLockManager
	name string
}

func (l fakeLock) Release() error {
	l.m.mutex.Lock()
	defer l.m.mutex.Unlock()

	delete(l.m.held, l.name)
	return nil
}

// recordingListener appends the name of each notified phase to a shared log.
type recordingListener struct {
	name     string
	order    int
	multiple bool
	log      *[]string

	failClosing bool
}

func (l recordingListener) Closing(*CommandContext) error {
	*l.log = append(*l.log, l.name+":closing")
	if l.failClosing {
		return errors.New("closing failed")
	}
	return nil
}

func (l recordingListener) AfterSessionsFlush(*CommandContext) error {
	*l.log = append(*l.log, l.name+":afterSessionsFlush")
	return nil
}

func (l recordingListener) Closed(*CommandContext) error {
	*l.log = append(*l.log, l.name+":closed")
	return nil
}

func (l recordingListener) CloseFailure(*CommandContext) error {
	*l.log = append(*l.log, l.name+":closeFailure")
	return nil
}

func (l recordingListener) Order() int {
	return l.order
}

func (l recordingListener) MultipleAllowed() bool {
	return l.multiple
}

// recordingSession appends flush and close to a shared log.
type recordingSession struct {
	name string
	log  *[]string

	flushErr error
}

func (s *recordingSession) Flush() error {
	*s.log = append(*s.log, s.name+":flush")
	return s.flushErr
}

func (s *recordingSession) Close() error {
	*s.log = append(*s.log, s.name+":close")
	return nil
}
