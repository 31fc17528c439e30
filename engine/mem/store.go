package mem

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/hashicorp/go-memdb"
)

const (
	tableEventSubscription = "event_subscription"
	tableExecution         = "execution"
	tableProcess           = "process"
	tableVariable          = "variable"

	indexId                = "id"
	indexProcessInstanceId = "process_instance_id"
	indexProcessVersion    = "process_version"
)

func newSchema() *memdb.DBSchema {
	idIndex := &memdb.IndexSchema{
		Name:    indexId,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "Id"},
	}
	processInstanceIdIndex := &memdb.IndexSchema{
		Name:    indexProcessInstanceId,
		Indexer: &memdb.StringFieldIndex{Field: "ProcessInstanceId"},
	}

	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableEventSubscription: {
				Name: tableEventSubscription,
				Indexes: map[string]*memdb.IndexSchema{
					indexId:                idIndex,
					indexProcessInstanceId: processInstanceIdIndex,
				},
			},
			tableExecution: {
				Name: tableExecution,
				Indexes: map[string]*memdb.IndexSchema{
					indexId:                idIndex,
					indexProcessInstanceId: processInstanceIdIndex,
				},
			},
			tableProcess: {
				Name: tableProcess,
				Indexes: map[string]*memdb.IndexSchema{
					indexId: idIndex,
					indexProcessVersion: {
						Name:   indexProcessVersion,
						Unique: true,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "BpmnProcessId"},
								&memdb.StringFieldIndex{Field: "Version"},
							},
						},
					},
				},
			},
			tableVariable: {
				Name: tableVariable,
				Indexes: map[string]*memdb.IndexSchema{
					indexId:                idIndex,
					indexProcessInstanceId: processInstanceIdIndex,
				},
			},
		},
	}
}

func newStore() (*memStore, error) {
	db, err := memdb.NewMemDB(newSchema())
	if err != nil {
		return nil, err
	}
	return &memStore{db: db}, nil
}

// memStore keeps all entities in a memdb. Since memdb allows only one write transaction at a time, commands are
// serialized.
type memStore struct {
	db *memdb.MemDB
}

func (s *memStore) Begin(ctx context.Context) (internal.Tx, error) {
	// memdb's writer lock is not reentrant
	if transactionContext := internal.TransactionContextFrom(ctx); transactionContext != nil {
		if tx, ok := transactionContext.Tx().(*memTx); ok && tx.store == s && !tx.done {
			return nil, engine.Error{
				Type:   engine.ErrorBug,
				Title:  "failed to begin transaction",
				Detail: "a mem engine cannot begin a new transaction, while the transaction of an outer command is open",
			}
		}
	}

	return &memTx{store: s, txn: s.db.Txn(true)}, nil
}

func (s *memStore) Close() {
}

// memTx wraps a write transaction. Entities are stored as copies, since memdb requires stored objects to be immutable.
type memTx struct {
	store *memStore
	txn   *memdb.Txn
	done  bool
}

func (tx *memTx) Commit() error {
	tx.txn.Commit()
	tx.done = true
	return nil
}

func (tx *memTx) Rollback() error {
	tx.txn.Abort()
	tx.done = true
	return nil
}

func (tx *memTx) EventSubscriptions() internal.EventSubscriptionRepository {
	return eventSubscriptionRepository{txn: tx.txn}
}

func (tx *memTx) Executions() internal.ExecutionRepository {
	return executionRepository{txn: tx.txn}
}

func (tx *memTx) Processes() internal.ProcessRepository {
	return processRepository{txn: tx.txn}
}

func (tx *memTx) Variables() internal.VariableRepository {
	return variableRepository{txn: tx.txn}
}

// selectAll collects all objects of a table, which match the given index arguments.
func selectAll[T any](txn *memdb.Txn, table string, index string, args ...any) ([]*T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, err
	}

	var results []*T
	for obj := it.Next(); obj != nil; obj = it.Next() {
		v := *obj.(*T)
		results = append(results, &v)
	}
	return results, nil
}
