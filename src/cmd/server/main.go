package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"doc-scanner/src/pkg/archive"
	"doc-scanner/src/pkg/config"
	"doc-scanner/src/pkg/echomw"
	"doc-scanner/src/pkg/gemini"
	"doc-scanner/src/pkg/pipeline"
	"doc-scanner/src/pkg/recognize"
)

/*
main starts the HTTP scan service.

Routes:
  - POST /api/scan: multipart form with an "image" file plus optional
    "language", "engine", "model" and "capture" fields; responds with the
    pipeline result record as JSON.
  - GET /healthz: liveness probe.

The pipeline itself is stateless, so one orchestrator serves all requests.
*/
func main() {
	config.CheckIfEnvVarsPresent()

	// Common flags.
	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")

	// Parse and initialize config.
	flag.Parse()
	config.InitializeConfig(*configPath)
	echomw.InitializeConfig()
	pipeline.InitializeConfig()
	gemini.InitializeConfig()
	archive.InitializeConfig()

	tl.Log(
		tl.Notice, palette.BlueBold, "%s scan service entrypoint. Config path: '%s'",
		"Running", *configPath,
	)

	orchestrator := pipeline.New()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RouteAccessLoggerMiddleware)
	e.Use(echomw.RateLimiterMiddleware)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/api/scan", scanHandler(orchestrator))

	address := fmt.Sprintf("%s:%d", echomw.Cfg.Address, echomw.Cfg.Port)
	tl.Log(tl.Notice1, palette.GreenBold, "%s on '%s'", "Listening", address)
	xerr.QuitIfError(e.Start(address), "echo server stopped")
}

/*
scanHandler reads the uploaded image and runs one pipeline invocation with
the caller's engine, language and capture selections. The response is always
the pipeline's result record: handled rejections are 200s with success=false,
only malformed requests get a 4xx.
*/
func scanHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		fileHeader, formErr := c.FormFile("image")
		if formErr != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "multipart field 'image' is required",
			})
		}

		maxBytes := int64(echomw.Cfg.MaxUploadMegabytes) << 20
		if fileHeader.Size > maxBytes {
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("image exceeds the %dMB upload limit", echomw.Cfg.MaxUploadMegabytes),
			})
		}

		uploadedFile, openErr := fileHeader.Open()
		if openErr != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "uploaded image could not be opened",
			})
		}
		defer func() {
			_ = uploadedFile.Close()
		}()

		rawImage, readErr := io.ReadAll(io.LimitReader(uploadedFile, maxBytes))
		if readErr != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "uploaded image could not be read",
			})
		}

		options := pipeline.Options{
			LanguageHint: c.FormValue("language"),
			Engine:       recognize.ParseEngine(c.FormValue("engine")),
			CloudModel:   c.FormValue("model"),
			MIMEType:     fileHeader.Header.Get("Content-Type"),
			FlatCapture:  strings.EqualFold(c.FormValue("capture"), "flat"),
		}

		result, prepared := orchestrator.Run(c.Request().Context(), rawImage, options)

		if archive.Cfg.Enabled {
			extension := filepath.Ext(fileHeader.Filename)
			if _, archiveErr := archive.SaveRun(archive.Cfg.Dir, rawImage, extension, prepared, result); archiveErr != nil {
				tl.Log(tl.Warning, palette.YellowBold, "Failed archiving scan run: '%s'", archiveErr)
			}
		}

		return c.JSON(http.StatusOK, result)
	}
}
