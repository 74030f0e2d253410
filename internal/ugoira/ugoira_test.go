package ugoira_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"pixie/internal/ugoira"
)

// frameArchive builds a zip of solid-color PNG frames. Names are chosen out
// of order to verify the converter sorts members.
func frameArchive(t *testing.T, colors []color.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	names := make([]string, len(colors))
	for i := range colors {
		names[i] = frameName(i)
	}
	// Write in reverse so archive order differs from playback order.
	for i := len(colors) - 1; i >= 0; i-- {
		member, err := writer.Create(names[i])
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.Set(x, y, colors[i])
			}
		}
		if err := png.Encode(member, img); err != nil {
			t.Fatalf("encode frame: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func frameName(i int) string {
	return string(rune('0'+i)) + ".png"
}

func TestConvertProducesDecodableGIF(t *testing.T) {
	archive := frameArchive(t, []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	})

	var out bytes.Buffer
	if err := ugoira.Convert(archive, []int{80, 120, 200}, &out); err != nil {
		t.Fatalf("convert: %v", err)
	}

	anim, err := gif.DecodeAll(&out)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(anim.Image))
	}
	want := []int{8, 12, 20}
	for i, delay := range anim.Delay {
		if delay != want[i] {
			t.Fatalf("frame %d delay = %d ticks, want %d", i, delay, want[i])
		}
	}
	// First frame sorted by name should be the red one.
	r, _, _, _ := anim.Image[0].At(1, 1).RGBA()
	if r < 0xC000 {
		t.Fatalf("first frame is not red-dominant (r=%d); member sorting broken", r)
	}
}

func TestConvertRepeatsLastDelay(t *testing.T) {
	archive := frameArchive(t, []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	})

	var out bytes.Buffer
	if err := ugoira.Convert(archive, []int{50}, &out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	anim, err := gif.DecodeAll(&out)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	for i, delay := range anim.Delay {
		if delay != 5 {
			t.Fatalf("frame %d delay = %d, want 5", i, delay)
		}
	}
}

func TestConvertRejectsEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := ugoira.Convert(buf.Bytes(), []int{100}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an empty archive")
	}
}

func TestWriteSidecar(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "123_ugoira.gif")
	sidecar := ugoira.SidecarPath(target)

	if err := ugoira.WriteSidecar(sidecar, []int{80, 120}); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}

	raw, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var payload struct {
		FrameDelaysMS []int `json:"frame_delays_ms"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal sidecar: %v", err)
	}
	if len(payload.FrameDelaysMS) != 2 || payload.FrameDelaysMS[1] != 120 {
		t.Fatalf("unexpected sidecar payload %v", payload.FrameDelaysMS)
	}
}
