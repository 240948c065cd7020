package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/tuumbleweed/xerr"

	"doc-scanner/src/pkg/recognize"
)

// fakeCapability replays scripted responses and records every request.
type fakeCapability struct {
	name     string
	texts    []string
	errs     []*xerr.Error
	requests []recognize.Request
}

func (f *fakeCapability) Name() string { return f.name }

func (f *fakeCapability) Recognize(_ context.Context, request recognize.Request) (string, *xerr.Error) {
	i := len(f.requests)
	f.requests = append(f.requests, request)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	return "", nil
}

func capabilityError() *xerr.Error {
	return xerr.NewError(fmt.Errorf("engine crashed"), "scripted capability failure", nil)
}

// testPNG returns a decodable grayscale PNG payload.
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 1000, 700))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	// A few dark rows so the raster is not fully uniform.
	for y := 300; y < 306; y++ {
		for x := 100; x < 900; x++ {
			img.Pix[y*img.Stride+x] = 0
		}
	}
	var buffer bytes.Buffer
	if err := imaging.Encode(&buffer, img, imaging.PNG); err != nil {
		t.Fatalf("encode test PNG: %v", err)
	}
	return buffer.Bytes()
}

func newTestOrchestrator(local, cloud recognize.Capability) *Orchestrator {
	return &Orchestrator{Local: local, Cloud: cloud}
}

func TestRunLocalEarlyStop(t *testing.T) {
	local := &fakeCapability{name: "fake", texts: []string{"Clean readable text 123"}}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})

	if !result.Success {
		t.Fatalf("expected acceptance, got %+v", result)
	}
	if len(local.requests) != 1 {
		t.Fatalf("expected exactly 1 attempt on a high score, got %d", len(local.requests))
	}
	if local.requests[0].Mode != recognize.SegmentSingleBlock {
		t.Fatalf("first attempt mode = %q, want single-block", local.requests[0].Mode)
	}
}

func TestRunLocalFallbackOrdering(t *testing.T) {
	// Attempt 1 scores 0.0, the inverted retry 0.2, the multi-block retry 0.1.
	local := &fakeCapability{name: "fake", texts: []string{
		"@@@@@@@@@@",
		"ab@@@@@@@@",
		"a@@@@@@@@@",
	}}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})

	if len(local.requests) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(local.requests))
	}
	if result.Text != "ab@@@@@@@@" {
		t.Fatalf("selected text = %q, want the inverted-variant attempt", result.Text)
	}
	if local.requests[1].Mode != recognize.SegmentSingleBlock {
		t.Fatalf("inverted retry mode = %q, want single-block", local.requests[1].Mode)
	}
	if local.requests[2].Mode != recognize.SegmentMultiBlock {
		t.Fatalf("final retry mode = %q, want multi-block", local.requests[2].Mode)
	}
	// The inverted retry must receive a different raster payload.
	if bytes.Equal(local.requests[0].Image, local.requests[1].Image) {
		t.Fatalf("inverted retry received the same raster as attempt 1")
	}
	// The multi-block retry runs on the non-inverted raster.
	if !bytes.Equal(local.requests[0].Image, local.requests[2].Image) {
		t.Fatalf("multi-block retry did not reuse the non-inverted raster")
	}
}

func TestRunLocalTieKeepsEarliestAttempt(t *testing.T) {
	// Equal scores: the retry must not displace the first attempt.
	local := &fakeCapability{name: "fake", texts: []string{
		"ab@@@@@@@@",
		"cd@@@@@@@@",
		"@@@@@@@@@@",
	}}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})
	if result.Text != "ab@@@@@@@@" {
		t.Fatalf("selected text = %q, want the first attempt on a tie", result.Text)
	}
}

func TestRunLocalCapabilityErrorMovesLadderAlong(t *testing.T) {
	local := &fakeCapability{
		name:  "fake",
		texts: []string{"", "recovered text 42"},
		errs:  []*xerr.Error{capabilityError(), nil},
	}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})
	if !result.Success {
		t.Fatalf("expected recovery via the next strategy, got %+v", result)
	}
	if result.Text != "recovered text 42" {
		t.Fatalf("selected text = %q", result.Text)
	}
}

func TestRunLocalAllAttemptsFail(t *testing.T) {
	local := &fakeCapability{
		name: "fake",
		errs: []*xerr.Error{capabilityError(), capabilityError(), capabilityError()},
	}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})
	if result.Success || result.Reason != ReasonCapabilityError {
		t.Fatalf("expected capability_error rejection, got %+v", result)
	}
	if len(local.requests) != 3 {
		t.Fatalf("expected the full ladder before giving up, got %d attempts", len(local.requests))
	}
}

func TestRunLocalEmptyTextRejected(t *testing.T) {
	local := &fakeCapability{name: "fake", texts: []string{"", "", ""}}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})
	if result.Success || result.Reason != ReasonNoTextFound {
		t.Fatalf("expected no_text_found rejection, got %+v", result)
	}
}

func TestRunLocalDecodeError(t *testing.T) {
	local := &fakeCapability{name: "fake"}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), []byte("definitely not an image"), Options{Engine: recognize.EngineLocal})
	if result.Success || result.Reason != ReasonDecodeError {
		t.Fatalf("expected decode_error rejection, got %+v", result)
	}
	if len(local.requests) != 0 {
		t.Fatalf("no attempts may run on undecodable input, got %d", len(local.requests))
	}
}

func TestRunCloudSingleAttempt(t *testing.T) {
	cloud := &fakeCapability{name: "fake-cloud", texts: []string{"Cloud extracted text\nline two"}}
	local := &fakeCapability{name: "fake"}
	o := newTestOrchestrator(local, cloud)

	result, _ := o.Run(context.Background(), []byte("raw capture bytes"), Options{Engine: recognize.EngineCloudAI})
	if !result.Success {
		t.Fatalf("expected acceptance, got %+v", result)
	}
	if len(cloud.requests) != 1 {
		t.Fatalf("cloud path must make exactly one attempt, got %d", len(cloud.requests))
	}
	if len(local.requests) != 0 {
		t.Fatalf("local capability must not run on the cloud path")
	}
	// The cloud capability receives the original bytes, not a prepared raster.
	if string(cloud.requests[0].Image) != "raw capture bytes" {
		t.Fatalf("cloud capability did not receive the original payload")
	}
}

func TestRunCloudFailureRejected(t *testing.T) {
	cloud := &fakeCapability{name: "fake-cloud", errs: []*xerr.Error{capabilityError()}}
	o := newTestOrchestrator(nil, cloud)

	result, _ := o.Run(context.Background(), []byte("raw"), Options{Engine: recognize.EngineCloudAI})
	if result.Success || result.Reason != ReasonCapabilityError {
		t.Fatalf("expected capability_error rejection, got %+v", result)
	}
	if len(cloud.requests) != 1 {
		t.Fatalf("cloud failures must not be blindly re-invoked, got %d attempts", len(cloud.requests))
	}
}

func TestRunCloudEmptyTextRejected(t *testing.T) {
	cloud := &fakeCapability{name: "fake-cloud", texts: []string{"  \n "}}
	o := newTestOrchestrator(nil, cloud)

	result, _ := o.Run(context.Background(), []byte("raw"), Options{Engine: recognize.EngineCloudAI})
	if result.Success || result.Reason != ReasonNoTextFound {
		t.Fatalf("expected no_text_found rejection, got %+v", result)
	}
}

func TestStrictPolicyRejectsLowScores(t *testing.T) {
	saved := Cfg
	defer func() { Cfg = saved }()
	Cfg.AcceptPolicy = PolicyStrict

	// Best score is 0.2: the full ladder runs and the best still fails the gate.
	local := &fakeCapability{name: "fake", texts: []string{
		"ab@@@@@@@@",
		"@@@@@@@@@@",
		"@@@@@@@@@@",
	}}
	o := newTestOrchestrator(local, nil)

	result, _ := o.Run(context.Background(), testPNG(t), Options{Engine: recognize.EngineLocal})
	if result.Success || result.Reason != ReasonQualityRejected {
		t.Fatalf("expected quality_rejected under strict policy, got %+v", result)
	}
	if !strings.Contains(result.Message, "0.20") {
		t.Fatalf("strict rejection must surface the numeric score, got %q", result.Message)
	}
	if result.Score != 0.2 {
		t.Fatalf("rejection score = %v, want best score seen", result.Score)
	}
}
