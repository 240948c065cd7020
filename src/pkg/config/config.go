package config

import (
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

var (
	sectionsMu sync.Mutex
	sections   map[string]json.RawMessage
)

/*
InitializeConfig reads the JSON configuration file at configPath and keeps its
top-level sections for the individual packages to pick up via DecodeSection.

A missing file is not an error: every package carries its own default config,
so the program keeps working with defaults. A file that exists but cannot be
parsed is logged and ignored the same way.
*/
func InitializeConfig(configPath string) {
	trimmed := strings.TrimSpace(configPath)
	if trimmed == "" {
		tl.Log(tl.Info, palette.Purple, "%s path is %s, using %s", "Config", "empty", "package defaults")
		return
	}

	fileBytes, readErr := os.ReadFile(trimmed)
	if readErr != nil {
		tl.Log(tl.Info, palette.Purple, "Config file '%s' is %s, using %s", trimmed, "not readable", "package defaults")
		return
	}

	parsed := map[string]json.RawMessage{}
	if unmarshalErr := json.Unmarshal(fileBytes, &parsed); unmarshalErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Config file '%s' is %s: '%s'", trimmed, "not valid JSON", unmarshalErr)
		return
	}

	sectionsMu.Lock()
	sections = parsed
	sectionsMu.Unlock()

	tl.Log(tl.Info1, palette.Green, "%s config from '%s' (%v sections)", "Loaded", trimmed, len(parsed))
}

/*
DecodeSection unmarshals one named top-level section of the loaded config file
into destination. It returns false when the section is absent (or no config
file was loaded), so the calling package keeps its defaults.
*/
func DecodeSection(sectionName string, destination any) bool {
	sectionsMu.Lock()
	raw, found := sections[sectionName]
	sectionsMu.Unlock()

	if !found {
		return false
	}

	if unmarshalErr := json.Unmarshal(raw, destination); unmarshalErr != nil {
		tl.Log(
			tl.Warning, palette.YellowBold, "Section '%s' is %s: '%s'",
			sectionName, "not valid for its package", unmarshalErr,
		)
		return false
	}

	return true
}

/*
CheckIfEnvVarsPresent loads a local .env file (if one exists) and verifies the
given environment variables are set and non-empty. Every missing variable is
logged; if any were missing the program exits with status 1.
*/
func CheckIfEnvVarsPresent(variableNames ...string) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	missing := false
	for _, name := range variableNames {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			tl.Log(tl.Warning, palette.YellowBold, "Environment variable '%s' is %s", name, "required")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}

// GetPackageName returns the package name of the caller, for config log labels.
func GetPackageName() string {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}
	fullName := runtime.FuncForPC(pc).Name() // e.g. doc-scanner/src/pkg/echomw.InitializeConfig
	if slash := strings.LastIndex(fullName, "/"); slash >= 0 {
		fullName = fullName[slash+1:]
	}
	if dot := strings.Index(fullName, "."); dot >= 0 {
		fullName = fullName[:dot]
	}
	return fullName
}
