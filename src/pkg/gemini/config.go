package gemini

import (
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/config"
)

type Config struct {
	Model string `json:"model,omitempty"`
}

func DefaultValueConfig() Config {
	return Config{
		Model: "gemini-2.5-flash",
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
If a "gemini" section exists in the loaded config file - use it. Replace all
missing values with default ones.

If not provided - just use defaultConfig.
*/
func InitializeConfig() {
	var localConfig Config
	if !config.DecodeSection("gemini", &localConfig) {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", "gemini", "not provided", "default gemini config")
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

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", "gemini", "provided", "local gemini config")
}
