package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"doc-scanner/src/pkg/archive"
	"doc-scanner/src/pkg/config"
	"doc-scanner/src/pkg/gemini"
	"doc-scanner/src/pkg/pipeline"
	"doc-scanner/src/pkg/recognize"
	"doc-scanner/src/pkg/util"
)

/*
main runs the recognition pipeline from the command line.

-image can be:
  - a single image file (.jpg/.jpeg/.png)
  - a directory containing images (.jpg/.jpeg/.png)

For each image the pipeline runs once and the recognized text (or the
rejection message) is printed. With -keep, every run's artifacts are archived
under -out.
*/
func main() {
	config.CheckIfEnvVarsPresent()

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Program-specific flags.
	imagePath := flag.String("image", "", "Path to a document image OR a directory with images (.jpg/.jpeg/.png).")
	language := flag.String("language", "vietnamese+english", "Language hint: english or vietnamese+english.")
	engine := flag.String("engine", "local", "Recognition engine: local or cloudai (cloudai needs GEMINI_API_KEY).")
	cloudModel := flag.String("model", "", "Cloud model override, e.g. gemini-2.5-pro (empty: configured default).")
	flatCapture := flag.Bool("flat", false, "Use the flat-capture enhancement branch (scans/uploads instead of camera photos).")
	keepArtifacts := flag.Bool("keep", false, "Archive each run's artifacts (original, processed raster, text) under -out.")
	outputDirPath := flag.String("out", "./out", "Directory where archived runs are stored (with -keep).")

	// Parse and initialize config.
	flag.Parse()
	util.RequiredFlag(imagePath, "image")
	util.EnsureFlags()
	config.InitializeConfig(*configPath)
	pipeline.InitializeConfig()
	gemini.InitializeConfig()
	archive.InitializeConfig()

	tl.Log(
		tl.Notice, palette.BlueBold, "%s scan entrypoint. Config path: '%s'",
		"Running", *configPath,
	)

	imagesToProcess, e := resolveImagesToProcess(*imagePath)
	e.QuitIf("error")

	if len(imagesToProcess) == 0 {
		tl.Log(
			tl.Warning, palette.PurpleBold, "No .jpg/.jpeg/.png files found at: '%s'",
			*imagePath,
		)
		os.Exit(0)
	}
	if len(imagesToProcess) > 1 {
		tl.Log(tl.Notice1, palette.GreenBold, "Found '%d' images to process", len(imagesToProcess))
	}

	orchestrator := pipeline.New()
	options := pipeline.Options{
		LanguageHint: *language,
		Engine:       recognize.ParseEngine(*engine),
		CloudModel:   *cloudModel,
		FlatCapture:  *flatCapture,
	}

	acceptedCount := 0
	rejectedCount := 0

	for _, path := range imagesToProcess {
		tl.Log(tl.Notice, palette.BlueBold, "%s '%s'", "Processing image", path)

		rawImage, readErr := os.ReadFile(path)
		if readErr != nil {
			rejectedCount++
			tl.Log(tl.Error, palette.RedBold, "Failed reading '%s': '%s'", path, readErr)
			continue
		}

		options.MIMEType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		result, prepared := orchestrator.Run(context.Background(), rawImage, options)
		tl.LogJSON(tl.Verbose, palette.CyanDim, "ScanResult", result)

		if *keepArtifacts {
			runDirPath, archiveErr := archive.SaveRun(*outputDirPath, rawImage, filepath.Ext(path), prepared, result)
			if archiveErr != nil {
				tl.Log(tl.Warning, palette.YellowBold, "Failed archiving run for '%s': '%s'", path, archiveErr)
			} else {
				tl.Log(tl.Info1, palette.Cyan, "Run artifacts in '%s'", runDirPath)
			}
		}

		if result.Success {
			acceptedCount++
			tl.Log(tl.Notice1, palette.GreenBold, "Accepted '%s' with score %.3f", path, result.Score)
			fmt.Println(result.Text)
		} else {
			rejectedCount++
			tl.Log(tl.Warning, palette.PurpleBold, "Rejected '%s' (%s): %s", path, result.Reason, result.Message)
		}
	}

	tl.Log(
		tl.Notice, palette.GreenBold, "Done. Accepted: '%v', rejected: '%v'",
		acceptedCount, rejectedCount,
	)
}

/*
resolveImagesToProcess expands the -image argument into the list of image
files to run: the file itself, or every .jpg/.jpeg/.png inside the directory
(sorted, non-recursive).
*/
func resolveImagesToProcess(inputPath string) (images []string, e *xerr.Error) {
	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		err := fmt.Errorf("input path is empty")
		e = xerr.NewError(err, "missing -image input", inputPath)
		return
	}

	info, statErr := os.Stat(trimmed)
	if statErr != nil {
		e = xerr.NewError(statErr, "stat -image input", trimmed)
		return
	}

	if !info.IsDir() {
		if !hasImageExtension(trimmed) {
			err := fmt.Errorf("unsupported file extension")
			e = xerr.NewError(err, "input is not a .jpg/.jpeg/.png file", trimmed)
			return
		}
		return []string{trimmed}, nil
	}

	entries, readErr := os.ReadDir(trimmed)
	if readErr != nil {
		e = xerr.NewError(readErr, "read -image directory", trimmed)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !hasImageExtension(entry.Name()) {
			continue
		}
		images = append(images, filepath.Join(trimmed, entry.Name()))
	}
	sort.Strings(images)
	return images, nil
}

func hasImageExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
