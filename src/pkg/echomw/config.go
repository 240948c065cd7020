package echomw

import (
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/config"
)

type Config struct {
	Address             string `json:"address,omitempty"`
	Port                int    `json:"port,omitempty"`
	MiddlewareRateLimit int    `json:"middleware_rate_limit,omitempty"`
	MiddlewareBurst     int    `json:"middleware_burst,omitempty"`
	// MaxUploadMegabytes bounds the multipart image payload accepted by the
	// scan endpoint.
	MaxUploadMegabytes int `json:"max_upload_megabytes,omitempty"`
}

func DefaultValueConfig() Config {
	return Config{
		Address:             "127.0.0.1",
		Port:                8402,
		MiddlewareRateLimit: 3,
		MiddlewareBurst:     50,
		MaxUploadMegabytes:  20,
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

/*
If an "echo_middleware" section exists in the loaded config file - use it.
Replace all missing values with default ones.

If not provided - just use defaultConfig.
*/
func InitializeConfig() {
	var localConfig Config
	if !config.DecodeSection("echo_middleware", &localConfig) {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", "echo-middleware", "not provided", "default echo-middleware config")
		UpdateRateLimits(Cfg.MiddlewareRateLimit, Cfg.MiddlewareBurst)
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

	UpdateRateLimits(Cfg.MiddlewareRateLimit, Cfg.MiddlewareBurst)

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", "echo-middleware", "provided", "local echo-middleware config")
}
