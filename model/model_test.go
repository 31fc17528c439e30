package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidXml(t *testing.T) {
	if _, err := New(strings.NewReader("")); err == nil {
		t.Fatal("expected error when XML is empty")
	}

	if _, err := New(strings.NewReader("#")); err == nil {
		t.Fatal("expected error when XML is invalid")
	}

	if _, err := New(strings.NewReader("<process></process>")); err == nil {
		t.Fatal("expected error when XML contains no definitions")
	}

	if _, err := New(strings.NewReader("<process></process1>")); err == nil {
		t.Fatal("expected error when XML is invalid")
	}
}

func TestInvalidIds(t *testing.T) {
	t.Run("element without ID", func(t *testing.T) {
		_, err := New(strings.NewReader(`<definitions id="test"><process id="a"><task /></process></definitions>`))
		assert.ErrorContains(t, err, "BPMN element of type TASK has no ID")
	})

	t.Run("duplicate element ID", func(t *testing.T) {
		_, err := New(strings.NewReader(`<definitions id="test"><process id="a"><task id="b" /><userTask id="b" /></process></definitions>`))
		assert.ErrorContains(t, err, "duplicate BPMN element ID b")
	})
}

func TestUnknownElement(t *testing.T) {
	assert := assert.New(t)

	// when
	model := mustCreateModel(t, "invalid/element-unknown.bpmn")

	// then
	assert.Equal("test", model.Definitions.Id)
	assert.Len(model.Definitions.Processes, 1)

	processElement := mustGetProcess(t, model, "elementUnknownTest")
	assert.Len(processElement.Children, 2)

	assert.Nil(model.ElementById("callActivity"))

	startEvent := model.ElementById("startEvent")
	assert.Equal([]string{"f1"}, startEvent.Outgoing)

	f1 := model.SequenceFlowById("f1")
	assert.Equal("startEvent", f1.SourceId)
	assert.Equal("callActivity", f1.TargetId)
}

func TestServiceTask(t *testing.T) {
	assert := assert.New(t)

	// when
	model := mustCreateModel(t, "task/service.bpmn")

	// then
	processElement := mustGetProcess(t, model, "serviceTest")
	assert.Equal(ElementProcess, processElement.Type)
	assert.Equal(&Process{IsExecutable: true}, processElement.Model)
	assert.Equal([]string{"startEvent", "serviceTask", "endEvent"}, processElement.Children)

	serviceTask := model.ElementById("serviceTask")
	assert.Equal(ElementServiceTask, serviceTask.Type)
	assert.Equal("serviceTest", serviceTask.ParentId)
	assert.Equal([]string{"f1"}, serviceTask.Incoming) // incoming/outgoing tags are ignored
	assert.Equal([]string{"f2"}, serviceTask.Outgoing)

	elements := model.ElementsByProcessId("serviceTest")
	assert.Len(elements, 4)
	assert.Equal("serviceTest", elements[0].Id)

	assert.Nil(model.ElementsByProcessId("notExisting"))

	_, err := model.ProcessById("notExisting")
	assert.EqualError(err, "BPMN process notExisting not found")
}

func TestExclusiveGateway(t *testing.T) {
	assert := assert.New(t)

	// when
	model := mustCreateModel(t, "gateway/exclusive.bpmn")

	// then
	fork := model.ElementById("fork")
	assert.Equal(ElementExclusiveGateway, fork.Type)
	assert.Equal("f4", fork.DefaultFlow())

	outgoing := model.Outgoing("fork")
	assert.Len(outgoing, 3)
	assert.Equal("${a}", outgoing[0].ConditionExpression)
	assert.Equal("${b}", outgoing[1].ConditionExpression)
	assert.Equal("", outgoing[2].ConditionExpression)

	incoming := model.Incoming("userTaskA")
	assert.Len(incoming, 1)
	assert.Equal("fork", incoming[0].SourceId)
}

func TestMultiInstance(t *testing.T) {
	assert := assert.New(t)

	t.Run("parallel with cardinality", func(t *testing.T) {
		model := mustCreateModel(t, "multi-instance/parallel.bpmn")

		mi := model.ElementById("userTask").MultiInstance()
		assert.NotNil(mi)
		assert.Equal(&MultiInstance{
			LoopCardinality:      "3",
			ElementIndexVariable: "index",
			Aggregations: []VariableAggregation{
				{Source: "result", Target: "results"},
			},
		}, mi)

		assert.Nil(model.ElementById("userTaskAfter").MultiInstance())
	})

	t.Run("sequential", func(t *testing.T) {
		model := mustCreateModel(t, "multi-instance/sequential.bpmn")

		mi := model.ElementById("userTask").MultiInstance()
		assert.True(mi.IsSequential)
		assert.Equal("${count}", mi.LoopCardinality)
	})

	t.Run("collection with completion condition", func(t *testing.T) {
		model := mustCreateModel(t, "multi-instance/collection.bpmn")

		mi := model.ElementById("userTask").MultiInstance()
		assert.Equal("items", mi.Collection)
		assert.Equal("item", mi.ElementVariable)
		assert.Equal("${nrOfCompletedInstances >= 2}", mi.CompletionCondition)
	})

	t.Run("sub process", func(t *testing.T) {
		model := mustCreateModel(t, "multi-instance/sub-process.bpmn")

		subProcess := model.ElementById("subProcess")
		assert.Equal("2", subProcess.MultiInstance().LoopCardinality)
		assert.Len(subProcess.Children, 3)
	})
}

func TestCompensation(t *testing.T) {
	assert := assert.New(t)

	// when
	model := mustCreateModel(t, "compensation/boundary.bpmn")

	// then
	attached := model.AttachedTo("bookHotel")
	assert.Len(attached, 1)
	assert.Equal(ElementCompensateBoundaryEvent, attached[0].Type)
	assert.Equal(&BoundaryEvent{AttachedTo: "bookHotel", CancelActivity: true, Handler: "cancelHotel"}, attached[0].Model)

	cancelHotel := model.ElementById("cancelHotel")
	assert.True(cancelHotel.Model.(*Activity).IsForCompensation)

	compensate := model.ElementById("compensate")
	assert.Equal(ElementCompensateThrowEvent, compensate.Type)

	assert.Len(model.ElementsByType(ElementCompensateBoundaryEvent), 2)
}

func TestSubProcess(t *testing.T) {
	assert := assert.New(t)

	// when
	model := mustCreateModel(t, "sub-process/sub-process.bpmn")

	// then
	subProcess := model.ElementById("subProcess")
	assert.Equal(ElementSubProcess, subProcess.Type)
	assert.Equal("subProcessTest", subProcess.ParentId)
	assert.Equal([]string{"subProcessStartEvent", "subProcessUserTask", "subProcessEndEvent"}, subProcess.Children)

	children := model.Children("subProcess")
	assert.Len(children, 3)
	assert.Equal("subProcess", children[0].ParentId)

	sequenceFlows := model.SequenceFlowsByParentId("subProcess")
	assert.Len(sequenceFlows, 2)
	assert.Equal("f3", sequenceFlows[0].Id)

	assert.Len(model.ElementsByProcessId("subProcessTest"), 8)
}

func TestTimerCatchEvent(t *testing.T) {
	assert := assert.New(t)

	model := mustCreateModel(t, "event/timer-catch.bpmn")

	timerCatchEvent := model.ElementById("timerCatchEvent")
	assert.Equal(ElementTimerCatchEvent, timerCatchEvent.Type)
	assert.Equal(&TimerEvent{TimeDuration: "PT1H"}, timerCatchEvent.Model)

	model = mustCreateModel(t, "event/timer-cycle.bpmn")

	timerCatchEvent = model.ElementById("timerCatchEvent")
	assert.Equal(&TimerEvent{TimeCycle: "0 * * * *"}, timerCatchEvent.Model)
}

func TestElementType(t *testing.T) {
	assert := assert.New(t)

	for elementType := ElementBusinessRuleTask; elementType <= ElementUserTask; elementType++ {
		assert.Equal(elementType, MapElementType(elementType.String()))
	}

	assert.True(ElementSubProcess.IsActivity())
	assert.False(ElementParallelGateway.IsActivity())
	assert.Equal(ElementType(0), MapElementType("CALL_ACTIVITY"))
}
