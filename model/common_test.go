package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// mustCreateModel parses a BPMN file from the shared fixture directory test/bpmn.
func mustCreateModel(t *testing.T, fileName string) *Model {
	b, err := os.ReadFile(filepath.Join("..", "test", "bpmn", fileName))
	require.NoError(t, err, "failed to read BPMN file %s", fileName)

	model, err := New(bytes.NewReader(b))
	require.NoError(t, err, "failed to parse BPMN file %s", fileName)

	return model
}

func mustGetProcess(t *testing.T, model *Model, bpmnProcessId string) *Element {
	processElement, err := model.ProcessById(bpmnProcessId)
	require.NoError(t, err)
	return processElement
}
