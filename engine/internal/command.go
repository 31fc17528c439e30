package internal

import (
	"context"
	"fmt"
	"strings"
)

// Command is a unit of work, executed within a command context.
type Command interface {
	Execute(*CommandContext) (any, error)
}

// CommandFunc adapts a function to a [Command].
type CommandFunc func(*CommandContext) (any, error)

func (f CommandFunc) Execute(cc *CommandContext) (any, error) {
	return f(cc)
}

// NamedCommand returns a command with a specific name, used for logging and metrics.
func NamedCommand(name string, f func(*CommandContext) (any, error)) Command {
	return namedCommand{name: name, f: f}
}

type namedCommand struct {
	name string
	f    func(*CommandContext) (any, error)
}

func (c namedCommand) CommandName() string {
	return c.name
}

func (c namedCommand) Execute(cc *CommandContext) (any, error) {
	return c.f(cc)
}

// ResultFunc is a command result, which is resolved after the agenda has been drained.
type ResultFunc func(*CommandContext) (any, error)

func commandName(command Command) string {
	if named, ok := command.(interface{ CommandName() string }); ok {
		return named.CommandName()
	}

	name := fmt.Sprintf("%T", command)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[i+1:]
	}
	return name
}

// CommandConfig is the policy of a single command execution.
type CommandConfig struct {
	// ContextReusePossible allows a nested command to reuse the command context and transaction of an outer command.
	ContextReusePossible bool
}

func DefaultCommandConfig() CommandConfig {
	return CommandConfig{ContextReusePossible: true}
}

// RequiresNew returns a copy of the config, which forces a new command context and transaction.
func (c CommandConfig) RequiresNew() CommandConfig {
	c.ContextReusePossible = false
	return c
}

// CommandInterceptor is an element of the chain, which executes a command.
type CommandInterceptor interface {
	Execute(ctx context.Context, config CommandConfig, command Command) (any, error)
	SetNext(CommandInterceptor)
}

// CommandExecutor executes commands by passing them through a chain of interceptors.
type CommandExecutor struct {
	first  CommandInterceptor
	config CommandConfig
}

// NewCommandExecutor links the interceptors in the given order.
func NewCommandExecutor(config CommandConfig, interceptors ...CommandInterceptor) *CommandExecutor {
	for i := 0; i < len(interceptors)-1; i++ {
		interceptors[i].SetNext(interceptors[i+1])
	}
	return &CommandExecutor{first: interceptors[0], config: config}
}

func (e *CommandExecutor) DefaultConfig() CommandConfig {
	return e.config
}

func (e *CommandExecutor) Execute(ctx context.Context, command Command) (any, error) {
	return e.first.Execute(ctx, e.config, command)
}

func (e *CommandExecutor) ExecuteWithConfig(ctx context.Context, config CommandConfig, command Command) (any, error) {
	return e.first.Execute(ctx, config, command)
}

// ExecuteCommand executes a command and converts its result.
func ExecuteCommand[T any](ctx context.Context, e *CommandExecutor, config CommandConfig, command Command) (T, error) {
	var zero T

	result, err := e.ExecuteWithConfig(ctx, config, command)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	v, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("command %s returned %T, but expected %T", commandName(command), result, zero)
	}
	return v, nil
}
