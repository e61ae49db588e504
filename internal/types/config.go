package types

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/quantsim-lab/quantsim/pkg/errors"
)

// RunMode selects how the clock advances.
type RunMode string

const (
	// RunModeBacktest replays historical bars with no real delay.
	RunModeBacktest RunMode = "backtest"
	// RunModePaper paces bars on the wall clock.
	RunModePaper RunMode = "paper"
)

// RunConfig is the caller-facing configuration for a single run.
type RunConfig struct {
	StrategyID     string  `yaml:"strategy_id" json:"strategy_id" jsonschema:"title=Strategy ID,description=Registered strategy identifier"`
	Symbol         string  `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Trading symbol to replay"`
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital in USD,minimum=0"`
	// CommissionRate is the fee as a fraction of notional, e.g. 0.001 for 10 bps.
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Fee as a fraction of traded notional,minimum=0"`
	// SlippageBps shifts fills against the order by this many basis points.
	SlippageBps float64                    `yaml:"slippage_bps" json:"slippage_bps" jsonschema:"title=Slippage,description=Execution slippage in basis points,minimum=0"`
	Mode        RunMode                    `yaml:"mode" json:"mode" jsonschema:"title=Mode,description=backtest or paper"`
	StartTime   optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the replay window"`
	EndTime     optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the replay window"`
	// EngineVersion is an optional semver constraint the running engine
	// must satisfy, e.g. ">=1.0.0".
	EngineVersion      string             `yaml:"engine_version" json:"engine_version" jsonschema:"title=Engine Version,description=Semver constraint on the engine version"`
	StrategyParameters map[string]float64 `yaml:"strategy_parameters" json:"strategy_parameters" jsonschema:"title=Strategy Parameters,description=Numeric parameters passed to the strategy"`
}

// UnmarshalYAML implements custom unmarshaling for RunConfig so that
// absent times map to None instead of the zero time.
func (c *RunConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		StrategyID         string             `yaml:"strategy_id"`
		Symbol             string             `yaml:"symbol"`
		InitialCapital     float64            `yaml:"initial_capital"`
		CommissionRate     float64            `yaml:"commission_rate"`
		SlippageBps        float64            `yaml:"slippage_bps"`
		Mode               RunMode            `yaml:"mode"`
		StartTime          *time.Time         `yaml:"start_time"`
		EndTime            *time.Time         `yaml:"end_time"`
		EngineVersion      string             `yaml:"engine_version"`
		StrategyParameters map[string]float64 `yaml:"strategy_parameters"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.StrategyID = config.StrategyID
	c.Symbol = config.Symbol
	c.InitialCapital = config.InitialCapital
	c.CommissionRate = config.CommissionRate
	c.SlippageBps = config.SlippageBps
	c.Mode = config.Mode
	c.EngineVersion = config.EngineVersion
	c.StrategyParameters = config.StrategyParameters

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate rejects configurations that would start a run with no
// partial state created.
func (c *RunConfig) Validate() error {
	if c.StrategyID == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "strategy_id is required")
	}

	if c.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "symbol is required")
	}

	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCapital, "initial capital must be positive: %f", c.InitialCapital)
	}

	if c.CommissionRate < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "commission rate must not be negative: %f", c.CommissionRate)
	}

	if c.SlippageBps < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "slippage must not be negative: %f", c.SlippageBps)
	}

	if c.Mode != "" && c.Mode != RunModeBacktest && c.Mode != RunModePaper {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown run mode: %s", c.Mode)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && !c.StartTime.Unwrap().Before(c.EndTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidDateRange, "start_time must be before end_time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the RunConfig.
func (c *RunConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "run-config"
	schema.Description = "Configuration schema for a simulation run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the RunConfig.
func (c *RunConfig) GenerateSchemaJSON() (string, error) {
	schema := c.GenerateSchema()

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
