package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/mem"
	"github.com/gclaussn/go-bpmn-core/engine/pg"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	envLookupAllowed = "envLookupAllowed" // flag level annotation that allows an environment variable lookup
	envPrefix        = "GO_BPMN_"
	noEngineRequired = "noEngineRequired" // annotation, indicating that no engine is required to run the command
	program          = "go-bpmn-core"
)

func New(version string) *Cli {
	cli := Cli{version: version}

	cli.rootCmd = newRootCmd(&cli)

	return &cli
}

type Cli struct {
	version string

	rootCmd *cobra.Command

	e        engine.Engine
	workerId string

	configFile  string
	engineType  engineTypeValue
	databaseUrl string
	engineId    string
	logLevel    string
}

func (c *Cli) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func (c *Cli) help(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

// config reads the config file, if specified, and applies all flags, which have been set explicitly.
func (c *Cli) config(flags *pflag.FlagSet) (config, error) {
	cfg := newConfig()
	if c.configFile != "" {
		if err := readConfig(c.configFile, &cfg); err != nil {
			return cfg, err
		}
	}

	if flags.Changed("engine") {
		cfg.Engine = c.engineType.String()
	}
	if flags.Changed("database-url") {
		cfg.DatabaseUrl = c.databaseUrl
	}
	if flags.Changed("engine-id") {
		cfg.EngineId = c.engineId
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}

	return cfg, nil
}

func newEngine(cfg config, migrationEnabled bool) (engine.Engine, error) {
	customize := func(o *engine.Options) {
		if cfg.EngineId != "" {
			o.EngineId = cfg.EngineId
		}
		if cfg.LogLevel != "" {
			o.Logger = engine.NewLogger(os.Stderr, cfg.LogLevel)
		}
		if cfg.RetryLimit != 0 {
			o.RetryLimit = cfg.RetryLimit
		}
		if cfg.RetryInterval != 0 {
			o.RetryInterval = cfg.RetryInterval
		}
	}

	switch cfg.Engine {
	case engineTypeMem:
		return mem.New(func(o *mem.Options) {
			customize(&o.Common)
		})
	case engineTypePg:
		return pg.New(cfg.DatabaseUrl, func(o *pg.Options) {
			customize(&o.Common)
			if cfg.Timeout != 0 {
				o.Timeout = cfg.Timeout
			}
			o.MigrationEnabled = migrationEnabled
		})
	default:
		return nil, fmt.Errorf("invalid engine %q", cfg.Engine)
	}
}

func newRootCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:   program,
		Short: "Runs BPMN processes on an embedded process engine",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			c.SilenceUsage = true

			c.Flags().VisitAll(func(f *pflag.Flag) {
				if f.Changed {
					return
				}
				if _, ok := f.Annotations[envLookupAllowed]; !ok {
					return
				}

				// e.g. database-url -> GO_BPMN_DATABASE_URL
				key := envPrefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")

				if value, ok := os.LookupEnv(key); ok {
					c.Flags().Set(f.Name, value)
				}
			})

			if _, ok := c.Annotations[noEngineRequired]; ok {
				return nil
			}

			if cli.e != nil {
				return nil // skip engine creation when testing
			}

			cfg, err := cli.config(c.Flags())
			if err != nil {
				return err
			}

			e, err := newEngine(cfg, true)
			if err != nil {
				return fmt.Errorf("failed to create %s engine: %v", cfg.Engine, err)
			}

			cli.e = e
			return nil
		},
		RunE: cli.help,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli.e != nil {
				cli.e.Shutdown()
			}
		},
		Annotations: map[string]string{noEngineRequired: ""},
	}

	cli.engineType = engineTypeMem

	c.PersistentFlags().StringVar(&cli.configFile, "config", "", "YAML config file")
	c.PersistentFlags().Var(&cli.engineType, "engine", "Engine type: mem or pg")
	c.PersistentFlags().StringVar(&cli.databaseUrl, "database-url", "", "PostgreSQL URL, required for engine pg")
	c.PersistentFlags().StringVar(&cli.engineId, "engine-id", engine.DefaultEngineId, "ID of the engine")
	c.PersistentFlags().StringVar(&cli.logLevel, "log-level", "error", "Engine log level")
	c.PersistentFlags().StringVar(&cli.workerId, "worker-id", program, "Worker ID")

	c.PersistentFlags().SetAnnotation("config", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("engine", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("database-url", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("engine-id", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("log-level", envLookupAllowed, nil)
	c.PersistentFlags().SetAnnotation("worker-id", envLookupAllowed, nil)

	c.AddCommand(newExecutionCmd(cli))
	c.AddCommand(newMigrateCmd(cli))
	c.AddCommand(newProcessCmd(cli))
	c.AddCommand(newProcessInstanceCmd(cli))
	c.AddCommand(newRunCmd(cli))
	c.AddCommand(newSetTimeCmd(cli))
	c.AddCommand(newTimerCmd(cli))
	c.AddCommand(newVariableCmd(cli))
	c.AddCommand(newVersionCmd(cli))

	return &c
}

func newMigrateCmd(cli *Cli) *cobra.Command {
	var timeout time.Duration

	c := cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema of a pg engine",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := cli.config(c.Flags())
			if err != nil {
				return err
			}
			if cfg.Engine != engineTypePg {
				return fmt.Errorf("engine %s has no database schema", cfg.Engine)
			}

			e, err := newEngine(cfg, false)
			if err != nil {
				return fmt.Errorf("failed to create %s engine: %v", cfg.Engine, err)
			}

			defer e.Shutdown()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := pg.Migrate(ctx, e); err != nil {
				return err
			}

			c.Println("database schema migrated")
			return nil
		},
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.Flags().DurationVar(&timeout, "timeout", time.Minute, "Time limit for the migration")

	return &c
}

func newSetTimeCmd(cli *Cli) *cobra.Command {
	var (
		timeV timeValue

		cmd engine.SetTimeCmd
	)

	c := cobra.Command{
		Use:   "set-time",
		Short: "Set the engine's time",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.Time = time.Time(timeV)

			return cli.e.SetTime(context.Background(), cmd)
		},
	}

	c.Flags().Var(&timeV, "time", "A future point in time")

	c.MarkFlagRequired("time")

	return &c
}

func newVersionCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(c *cobra.Command, _ []string) {
			c.Println(cli.version)
		},
		Annotations: map[string]string{noEngineRequired: ""},
	}

	return &c
}
