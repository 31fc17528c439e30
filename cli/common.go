package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	engineTypeMem = "mem"
	engineTypePg  = "pg"
)

// config is read from a YAML file and overridden by flags.
type config struct {
	Engine      string `yaml:"engine"`
	DatabaseUrl string `yaml:"databaseUrl"`
	EngineId    string `yaml:"engineId"`
	LogLevel    string `yaml:"logLevel"`

	RetryLimit    int           `yaml:"retryLimit"`
	RetryInterval time.Duration `yaml:"retryInterval"`
	Timeout       time.Duration `yaml:"timeout"`
}

func newConfig() config {
	return config{
		Engine:   engineTypeMem,
		LogLevel: "error",
	}
}

func readConfig(fileName string, c *config) error {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %v", fileName, err)
	}

	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %v", fileName, err)
	}

	switch c.Engine {
	case engineTypeMem, engineTypePg:
		return nil
	default:
		return fmt.Errorf("config file %s: invalid engine %q, expected %s or %s", fileName, c.Engine, engineTypeMem, engineTypePg)
	}
}

// mapVariables decodes variable values as JSON. A value, which is no valid JSON, is kept as string.
// An empty value results in a nil variable, which deletes the variable.
func mapVariables(valueMap map[string]string) map[string]any {
	if len(valueMap) == 0 {
		return nil
	}

	variables := make(map[string]any, len(valueMap))
	for name, value := range valueMap {
		if value == "" {
			variables[name] = nil
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			variables[name] = value
		} else {
			variables[name] = v
		}
	}
	return variables
}
