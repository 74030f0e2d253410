// Package ugoira converts animated-illustration frame archives into GIFs.
//
// A ugoira download is a zip whose members are the individual frames in
// playback order when sorted by name. The service supplies per-frame display
// durations separately; they ride along as a delay slice and optionally as a
// JSON sidecar next to the output file.
package ugoira

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"

	_ "image/jpeg"
	_ "image/png"
)

// gifTick is the GIF frame-delay unit in milliseconds.
const gifTick = 10

// Frames extracts the decoded frame images from a zip archive, ordered by
// member name.
func Frames(archive []byte) ([]image.Image, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open frame archive: %w", err)
	}

	members := make([]*zip.File, 0, len(reader.File))
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}
		members = append(members, member)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("frame archive is empty")
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	frames := make([]image.Image, 0, len(members))
	for _, member := range members {
		frame, err := decodeMember(member)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodeMember(member *zip.File) (image.Image, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", member.Name, err)
	}
	defer rc.Close()
	frame, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", member.Name, err)
	}
	return frame, nil
}

// Convert turns a frame archive and its per-frame millisecond delays into an
// animated GIF written to out. When fewer delays than frames are supplied the
// last delay is repeated; extra delays are ignored.
func Convert(archive []byte, delaysMS []int, out io.Writer) error {
	frames, err := Frames(archive)
	if err != nil {
		return err
	}
	if len(delaysMS) == 0 {
		return fmt.Errorf("no frame delays supplied")
	}

	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(frames)),
		Delay: make([]int, 0, len(frames)),
	}
	for i, frame := range frames {
		bounds := frame.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, frame, bounds.Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delayTicks(delaysMS, i))
	}

	if err := gif.EncodeAll(out, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

func delayTicks(delaysMS []int, frame int) int {
	ms := delaysMS[len(delaysMS)-1]
	if frame < len(delaysMS) {
		ms = delaysMS[frame]
	}
	ticks := ms / gifTick
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// WriteSidecar writes the frame durations as a JSON file next to the
// converted output, for players that want the exact millisecond timings.
func WriteSidecar(path string, delaysMS []int) error {
	payload, err := json.MarshalIndent(struct {
		FrameDelaysMS []int `json:"frame_delays_ms"`
	}{FrameDelaysMS: delaysMS}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal delays: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write delay sidecar: %w", err)
	}
	return nil
}

// SidecarPath derives the sidecar file name for a converted output path.
func SidecarPath(outputPath string) string {
	return outputPath + ".delays.json"
}
