package archive

import (
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/config"
)

type Config struct {
	// Enabled turns on run archiving in the HTTP service. The CLI controls
	// archiving with its own flag.
	Enabled bool   `json:"enabled,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

func DefaultValueConfig() Config {
	return Config{
		Enabled: false,
		Dir:     "./out",
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
If an "archive" section exists in the loaded config file - use it. Replace all
missing values with default ones.

If not provided - just use defaultConfig.
*/
func InitializeConfig() {
	var localConfig Config
	if !config.DecodeSection("archive", &localConfig) {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", "archive", "not provided", "default archive config")
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

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", "archive", "provided", "local archive config")
}
