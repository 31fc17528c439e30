package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
	"github.com/jackc/pgx/v5"
	"github.com/sasha-s/go-deadlock"
)

func NewProcessCache() *ProcessCache {
	return &ProcessCache{
		processes:     make(map[string]*ProcessEntity),
		processesById: make(map[string]*ProcessEntity),
	}
}

// ProcessCache holds processes together with their parsed execution graph. It is shared between all commands of an
// engine.
type ProcessCache struct {
	mutex         deadlock.RWMutex
	processes     map[string]*ProcessEntity
	processesById map[string]*ProcessEntity
}

func (c *ProcessCache) Add(process *ProcessEntity) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.processesById[process.Id] = process

	key := fmt.Sprintf("%s:%s", process.BpmnProcessId, process.Version)
	c.processes[key] = process
}

func (c *ProcessCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	clear(c.processes)
	clear(c.processesById)
}

func (c *ProcessCache) Get(bpmnProcessId string, version string) (*ProcessEntity, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	key := fmt.Sprintf("%s:%s", bpmnProcessId, version)
	process, ok := c.processes[key]
	return process, ok
}

func (c *ProcessCache) GetById(id string) (*ProcessEntity, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	process, ok := c.processesById[id]
	return process, ok
}

// GetOrCache returns a cached process or selects and caches it.
//
// If no process is found, [pgx.ErrNoRows] is returned.
func (c *ProcessCache) GetOrCache(cc *CommandContext, bpmnProcessId string, version string) (*ProcessEntity, error) {
	if process, ok := c.Get(bpmnProcessId, version); ok {
		return process, nil
	}

	process, err := cc.Tx().Processes().SelectByBpmnProcessIdAndVersion(bpmnProcessId, version)
	if err != nil {
		return nil, err
	}

	if err := c.cache(process); err != nil {
		if _, ok := err.(engine.Error); ok {
			return nil, err
		} else {
			return nil, fmt.Errorf("failed to cache process %s:%s: %w", bpmnProcessId, version, err)
		}
	}

	return process, nil
}

func (c *ProcessCache) GetOrCacheById(cc *CommandContext, id string) (*ProcessEntity, error) {
	if process, ok := c.GetById(id); ok {
		return process, nil
	}

	process, err := cc.Tx().Processes().Select(id)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("failed to select process %s: %w", id, err)
	}
	if err != nil {
		return nil, err
	}

	if err := c.cache(process); err != nil {
		if _, ok := err.(engine.Error); ok {
			return nil, err
		} else {
			return nil, fmt.Errorf("failed to cache process %s: %w", id, err)
		}
	}

	return process, nil
}

func (c *ProcessCache) cache(process *ProcessEntity) error {
	bpmnModel, err := model.New(strings.NewReader(process.BpmnXml))
	if err != nil {
		return err
	}

	processElement, err := bpmnModel.ProcessById(process.BpmnProcessId)
	if err != nil {
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to cache process",
			Detail: err.Error(),
		}
	}

	process.graph = newGraph(bpmnModel, processElement)
	c.Add(process)

	return nil
}

// ProcessEntity is a deployed BPMN process. A process is insert only.
type ProcessEntity struct {
	EntityState

	Id string

	BpmnProcessId string
	BpmnXml       string
	BpmnXmlMd5    string
	CreatedAt     time.Time
	CreatedBy     string
	Version       string

	graph *graph
}

func (e *ProcessEntity) EntityId() string {
	return e.Id
}

func (e *ProcessEntity) EntityType() EntityType {
	return EntityProcess
}

func (e *ProcessEntity) PersistentState() any {
	return processState{
		Id:            e.Id,
		BpmnProcessId: e.BpmnProcessId,
		BpmnXmlMd5:    e.BpmnXmlMd5,
		CreatedAt:     e.CreatedAt,
		CreatedBy:     e.CreatedBy,
		Version:       e.Version,
	}
}

func (e *ProcessEntity) Process() engine.Process {
	return engine.Process{
		Id: e.Id,

		BpmnProcessId: e.BpmnProcessId,
		CreatedAt:     e.CreatedAt,
		CreatedBy:     e.CreatedBy,
		Version:       e.Version,
	}
}

type processState struct {
	Id            string
	BpmnProcessId string
	BpmnXmlMd5    string
	CreatedAt     time.Time
	CreatedBy     string
	Version       string
}

type ProcessRepository interface {
	// InsertBatch inserts processes.
	//
	// If a concurrent insert caused an conflict (BPMN process ID and version must be unique), [pgx.ErrNoRows] is returned.
	InsertBatch([]*ProcessEntity) error

	// Select selects a process by ID.
	//
	// If no process is found, [pgx.ErrNoRows] is returned.
	Select(id string) (*ProcessEntity, error)

	// SelectByBpmnProcessIdAndVersion selects a process by BPMN process ID and version.
	//
	// If no process is found, [pgx.ErrNoRows] is returned.
	SelectByBpmnProcessIdAndVersion(bpmnProcessId string, version string) (*ProcessEntity, error)
}

type createProcessCmd struct {
	cmd engine.CreateProcessCmd
}

func (c createProcessCmd) CommandName() string {
	return "CreateProcess"
}

func (c createProcessCmd) Execute(cc *CommandContext) (any, error) {
	cmd := c.cmd

	md5Hash := md5.New()
	md5Hash.Write([]byte(cmd.BpmnXml))
	bpmnXmlMd5 := hex.EncodeToString(md5Hash.Sum(nil))

	bpmnModel, err := model.New(strings.NewReader(cmd.BpmnXml))
	if err != nil {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to create process",
			Detail: fmt.Sprintf("BPMN XML is invalid: %v", err),
		}
	}

	// find process
	processElement, err := bpmnModel.ProcessById(cmd.BpmnProcessId)
	if err != nil {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to create process",
			Detail: fmt.Sprintf("BPMN model has no process %s, but [%s]", cmd.BpmnProcessId, strings.Join(bpmnModel.Definitions.Processes, ", ")),
		}
	}

	// validate process
	if causes := validateProcess(bpmnModel, processElement); len(causes) != 0 {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to create process",
			Detail: "BPMN process is invalid",
			Causes: causes,
		}
	}

	// compare checksums with an existing process
	existing, err := cc.Tx().Processes().SelectByBpmnProcessIdAndVersion(cmd.BpmnProcessId, cmd.Version)
	if err == nil {
		if existing.BpmnXmlMd5 != bpmnXmlMd5 {
			return nil, engine.Error{
				Type:   engine.ErrorConflict,
				Title:  "failed to create process",
				Detail: fmt.Sprintf("process %s:%s already exists with a different BPMN XML", cmd.BpmnProcessId, cmd.Version),
			}
		}
		return existing.Process(), nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	cache, err := cc.EntityCache()
	if err != nil {
		return nil, err
	}

	process := &ProcessEntity{
		Id: newId(),

		BpmnProcessId: cmd.BpmnProcessId,
		BpmnXml:       cmd.BpmnXml,
		BpmnXmlMd5:    bpmnXmlMd5,
		CreatedAt:     cc.Time(),
		CreatedBy:     cmd.WorkerId,
		Version:       cmd.Version,

		graph: newGraph(bpmnModel, processElement),
	}

	cache.Insert(process)

	// cache process, when it is visible to other transactions
	AddTransactionListener(cc, TransactionCommitted, func(cc *CommandContext) error {
		cc.Runtime().ProcessCache().Add(process)
		return nil
	})

	return process.Process(), nil
}
