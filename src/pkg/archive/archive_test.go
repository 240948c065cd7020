package archive

import (
	"bytes"
	"encoding/json"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andybalholm/brotli"

	"doc-scanner/src/pkg/pipeline"
	"doc-scanner/src/pkg/raster"
)

func testRaster() raster.Raster {
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return raster.Raster{Gray: img, Stage: raster.StageEnhanced}
}

func TestSaveRunWritesAllArtifacts(t *testing.T) {
	rootDir := t.TempDir()
	rawImage := []byte("original capture bytes")
	enhanced := testRaster()
	result := pipeline.Result{
		Success:    true,
		Text:       "INVOICE 12345",
		Score:      0.97,
		Capability: "tesseract",
	}

	runDirPath, e := SaveRun(rootDir, rawImage, ".jpg", pipeline.Prepared{Enhanced: &enhanced}, result)
	if e != nil {
		t.Fatalf("SaveRun failed: %v", e)
	}

	original, readErr := os.ReadFile(filepath.Join(runDirPath, "orig.jpg"))
	if readErr != nil {
		t.Fatalf("missing original artifact: %v", readErr)
	}
	if !bytes.Equal(original, rawImage) {
		t.Fatalf("original artifact does not match the capture bytes")
	}

	if _, statErr := os.Stat(filepath.Join(runDirPath, "clean.png")); statErr != nil {
		t.Fatalf("missing processed raster artifact: %v", statErr)
	}

	text, readErr := os.ReadFile(filepath.Join(runDirPath, "text.txt"))
	if readErr != nil {
		t.Fatalf("missing text artifact: %v", readErr)
	}
	if string(text) != result.Text {
		t.Fatalf("text artifact = %q, want %q", text, result.Text)
	}

	compressedFile, openErr := os.Open(filepath.Join(runDirPath, "text.txt.br"))
	if openErr != nil {
		t.Fatalf("missing compressed text artifact: %v", openErr)
	}
	defer func() {
		_ = compressedFile.Close()
	}()
	decompressed, readErr := io.ReadAll(brotli.NewReader(compressedFile))
	if readErr != nil {
		t.Fatalf("compressed text artifact did not decompress: %v", readErr)
	}
	if string(decompressed) != result.Text {
		t.Fatalf("decompressed text = %q, want %q", decompressed, result.Text)
	}

	resultBytes, readErr := os.ReadFile(filepath.Join(runDirPath, "result.json"))
	if readErr != nil {
		t.Fatalf("missing result artifact: %v", readErr)
	}
	var restored pipeline.Result
	if unmarshalErr := json.Unmarshal(resultBytes, &restored); unmarshalErr != nil {
		t.Fatalf("result artifact is not valid JSON: %v", unmarshalErr)
	}
	if restored.Text != result.Text || restored.Score != result.Score || !restored.Success {
		t.Fatalf("result artifact round-trip mismatch: %+v", restored)
	}
}

func TestSaveRunRejectedRunSkipsTextArtifacts(t *testing.T) {
	rootDir := t.TempDir()
	result := pipeline.Result{
		Success:    false,
		Message:    "No text could be detected",
		Reason:     pipeline.ReasonNoTextFound,
		Capability: "tesseract",
	}

	runDirPath, e := SaveRun(rootDir, []byte("capture"), "png", pipeline.Prepared{}, result)
	if e != nil {
		t.Fatalf("SaveRun failed: %v", e)
	}

	// A bare extension gets its dot, an absent raster is simply skipped.
	if _, statErr := os.Stat(filepath.Join(runDirPath, "orig.png")); statErr != nil {
		t.Fatalf("missing original artifact: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(runDirPath, "clean.png")); !os.IsNotExist(statErr) {
		t.Fatalf("clean.png must not exist without a prepared raster")
	}
	if _, statErr := os.Stat(filepath.Join(runDirPath, "text.txt")); !os.IsNotExist(statErr) {
		t.Fatalf("text.txt must not exist for an empty-text run")
	}
	if _, statErr := os.Stat(filepath.Join(runDirPath, "result.json")); statErr != nil {
		t.Fatalf("missing result artifact: %v", statErr)
	}
}

func TestSaveRunDirectoriesNeverCollide(t *testing.T) {
	rootDir := t.TempDir()
	result := pipeline.Result{Success: true, Text: "x"}

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		runDirPath, e := SaveRun(rootDir, []byte("capture"), ".png", pipeline.Prepared{}, result)
		if e != nil {
			t.Fatalf("SaveRun failed: %v", e)
		}
		if seen[runDirPath] {
			t.Fatalf("run directory %q was produced twice", runDirPath)
		}
		seen[runDirPath] = true
	}
}
