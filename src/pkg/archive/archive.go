// Package archive stores the artifacts of a scan run (original capture,
// processed raster, recognized text) in a per-run directory for inspection.
// Archiving is opt-in: the pipeline itself persists nothing.
package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"doc-scanner/src/pkg/pipeline"
	"doc-scanner/src/pkg/raster"
)

/*
SaveRun writes one scan run into a fresh directory under rootDir:

  - orig.<ext>: the raw capture bytes as received
  - clean.png: the enhanced raster handed to the local engine (if any)
  - text.txt: the recognized text
  - text.txt.br: the same text, brotli-compressed for cheap retention
  - result.json: the full result record

The directory is named by timestamp plus a short random suffix so concurrent
runs never collide. Example: 2025-11-26_16-35-31_1a2b3c4d.
*/
func SaveRun(rootDir string, rawImage []byte, extension string, prepared pipeline.Prepared, result pipeline.Result) (runDirPath string, e *xerr.Error) {
	normalizedRoot := strings.TrimSpace(rootDir)
	if normalizedRoot == "" {
		normalizedRoot = "./out"
	}

	e = ensureOutputDirectory(normalizedRoot)
	if e != nil {
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	runDirPath = filepath.Join(normalizedRoot, timestamp+"_"+uuid.NewString()[:8])
	e = ensureOutputDirectory(runDirPath)
	if e != nil {
		return
	}

	normalizedExt := strings.ToLower(strings.TrimSpace(extension))
	if normalizedExt == "" {
		normalizedExt = ".png"
	}
	if !strings.HasPrefix(normalizedExt, ".") {
		normalizedExt = "." + normalizedExt
	}

	if writeErr := os.WriteFile(filepath.Join(runDirPath, "orig"+normalizedExt), rawImage, 0o644); writeErr != nil {
		e = xerr.NewError(writeErr, "write original image", runDirPath)
		return
	}

	if prepared.Enhanced != nil {
		e = saveRasterPNG(filepath.Join(runDirPath, "clean.png"), *prepared.Enhanced)
		if e != nil {
			return
		}
	}

	if result.Text != "" {
		e = saveText(filepath.Join(runDirPath, "text.txt"), result.Text)
		if e != nil {
			return
		}
		e = saveTextBrotli(filepath.Join(runDirPath, "text.txt.br"), result.Text)
		if e != nil {
			return
		}
	}

	e = saveJSON(filepath.Join(runDirPath, "result.json"), result)
	if e != nil {
		return
	}

	tl.Log(tl.Info1, palette.Green, "Archived scan run into '%s'", runDirPath)
	return runDirPath, nil
}

/*
ensureOutputDirectory creates the target directory (and parents) if needed.
*/
func ensureOutputDirectory(outputDirPath string) (e *xerr.Error) {
	if err := os.MkdirAll(outputDirPath, 0o755); err != nil {
		e = xerr.NewError(err, "create output directory", outputDirPath)
		return
	}
	return
}

func saveRasterPNG(destinationPath string, r raster.Raster) (e *xerr.Error) {
	payload, e := r.PNG()
	if e != nil {
		return
	}
	if writeErr := os.WriteFile(destinationPath, payload, 0o644); writeErr != nil {
		e = xerr.NewError(writeErr, "write processed raster", destinationPath)
		return
	}
	return
}

func saveText(destinationPath string, text string) (e *xerr.Error) {
	if writeErr := os.WriteFile(destinationPath, []byte(text), 0o644); writeErr != nil {
		e = xerr.NewError(writeErr, "write recognized text file", destinationPath)
		return
	}
	return
}

/*
saveTextBrotli writes the recognized text compressed with brotli, for archives
that retain many runs.
*/
func saveTextBrotli(destinationPath string, text string) (e *xerr.Error) {
	outputFile, createErr := os.Create(destinationPath)
	if createErr != nil {
		e = xerr.NewError(createErr, "create compressed text file", destinationPath)
		return
	}
	defer func() {
		_ = outputFile.Close()
	}()

	writer := brotli.NewWriter(outputFile)
	if _, writeErr := writer.Write([]byte(text)); writeErr != nil {
		e = xerr.NewError(writeErr, "write compressed text", destinationPath)
		return
	}
	if closeErr := writer.Close(); closeErr != nil {
		e = xerr.NewError(closeErr, "flush compressed text", destinationPath)
		return
	}
	return
}

/*
saveJSON marshals the given value to pretty-printed JSON and writes it to the
given path.
*/
func saveJSON(destinationPath string, value any) (e *xerr.Error) {
	jsonBytes, marshalErr := json.MarshalIndent(value, "", "  ")
	if marshalErr != nil {
		e = xerr.NewError(marshalErr, "marshal value to JSON", destinationPath)
		return
	}
	if writeErr := os.WriteFile(destinationPath, jsonBytes, 0o644); writeErr != nil {
		e = xerr.NewError(writeErr, "write JSON file", destinationPath)
		return
	}
	return
}
