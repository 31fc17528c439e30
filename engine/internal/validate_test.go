package internal

import (
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCmd(t *testing.T) {
	assert := assert.New(t)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(validateCmd("test", engine.SetVariablesCmd{
			ExecutionId: "a",
			Variables:   map[string]any{"a": 1, "_b2": nil},
		}))
	})

	t.Run("required", func(t *testing.T) {
		err := validateCmd("failed to set variables", engine.SetVariablesCmd{})

		var engineErr engine.Error
		require.ErrorAs(t, err, &engineErr)

		assert.Equal(engine.ErrorValidation, engineErr.Type)
		assert.Equal("failed to set variables", engineErr.Title)
		assert.Equal([]engine.ErrorCause{
			{Pointer: "#/executionId", Type: "required", Detail: "is required"},
		}, engineErr.Causes)
	})

	t.Run("variable name", func(t *testing.T) {
		err := validateCmd("test", engine.SetVariablesCmd{
			ExecutionId: "a",
			Variables:   map[string]any{"a-b": 1},
		})

		var engineErr engine.Error
		require.ErrorAs(t, err, &engineErr)
		require.Len(t, engineErr.Causes, 1)

		assert.Equal("#/variables/a-b", engineErr.Causes[0].Pointer)
		assert.Equal("variable_name", engineErr.Causes[0].Type)
		assert.Equal("must match regex ^[a-zA-Z_][a-zA-Z0-9_]*$", engineErr.Causes[0].Detail)
	})

	t.Run("range", func(t *testing.T) {
		err := validateCmd("test", engine.ExecuteTimersCmd{Limit: 1001})

		var engineErr engine.Error
		require.ErrorAs(t, err, &engineErr)
		require.Len(t, engineErr.Causes, 1)

		assert.Equal("#/limit", engineErr.Causes[0].Pointer)
		assert.Equal("lte", engineErr.Causes[0].Type)
		assert.Equal("must be less than or equal to 1000", engineErr.Causes[0].Detail)
	})
}

func TestValidateTimer(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(validate.Var("0 * * * *", "time_cycle"))
	assert.NoError(validate.Var("*/5 * * * *", "time_cycle"))
	assert.Error(validate.Var("* * *", "time_cycle"))

	assert.NoError(validate.Var("PT1H", "time_duration"))
	assert.NoError(validate.Var("P1DT12H", "time_duration"))
	assert.Error(validate.Var("1H", "time_duration"))
}

func TestFieldPointer(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("#", fieldPointer("Cmd"))
	assert.Equal("#/executionId", fieldPointer("Cmd.executionId"))
	assert.Equal("#/variables/a-b", fieldPointer("Cmd.variables[a-b]"))
	assert.Equal("#/a/b", fieldPointer("Cmd.a.b"))
}
