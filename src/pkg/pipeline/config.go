package pipeline

import (
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/config"
)

// AcceptancePolicy is the final gate applied to the best attempt. It is an
// explicit per-deployment choice, never a mix of both behaviors.
type AcceptancePolicy string

const (
	// PolicyPermissive accepts whatever the best attempt produced as long as
	// it is non-empty.
	PolicyPermissive AcceptancePolicy = "permissive"
	// PolicyStrict additionally rejects any best score below the strict
	// threshold, surfacing the numeric score so the caller can give
	// corrective guidance.
	PolicyStrict AcceptancePolicy = "strict"
)

type Config struct {
	// RetryThreshold is the "probably garbled" score below which further
	// local attempts are tried. It is not an accept/reject line.
	RetryThreshold float64 `json:"retry_threshold,omitempty"`

	AcceptPolicy    AcceptancePolicy `json:"accept_policy,omitempty"`
	StrictThreshold float64          `json:"strict_threshold,omitempty"`
}

func DefaultValueConfig() Config {
	return Config{
		RetryThreshold:  0.6,
		AcceptPolicy:    PolicyPermissive,
		StrictThreshold: 0.8,
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
If a "pipeline" section exists in the loaded config file - use it. Replace all
missing values with default ones.

If not provided - just use defaultConfig.
*/
func InitializeConfig() {
	var localConfig Config
	if !config.DecodeSection("pipeline", &localConfig) {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", "pipeline", "not provided", "default pipeline config")
		return
	}

	defaultConfig := DefaultValueConfig()
	Cfg = localConfig

	tl.ApplyDefaults(&Cfg, defaultConfig, func(field string, defVal any) {
		tl.Log(
			tl.Info, palette.Purple,
			"%s field is %s in %s configuration. Using default value: %v",
			field, "missing", config.GetPackageName(), tl.PrettyForStderr(defVal),
		)
	})

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", "pipeline", "provided", "local pipeline config")
}
