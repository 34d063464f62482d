package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FacesSuffix names the sidecar file holding detector boxes for a frame.
const FacesSuffix = ".faces.json"

var frameExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Frames lists the frames under path: the file itself, or every JPEG/PNG in
// the directory in lexical order.
func Frames(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		frames = append(frames, filepath.Join(path, e.Name()))
	}
	sort.Strings(frames)
	return frames, nil
}

// Faces returns the face boxes recorded for frame. Without a sidecar the
// whole frame is one face.
func Faces(frame string, bounds image.Rectangle) ([]image.Rectangle, error) {
	raw, err := os.ReadFile(frame + FacesSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return []image.Rectangle{bounds}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read face boxes: %w", err)
	}
	var boxes [][4]int
	if err := json.Unmarshal(raw, &boxes); err != nil {
		return nil, fmt.Errorf("parse face boxes %s: %w", frame+FacesSuffix, err)
	}
	rects := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		r := image.Rect(b[0], b[1], b[2], b[3])
		if r.Empty() {
			continue
		}
		rects = append(rects, r)
	}
	return rects, nil
}

// Largest returns the box with the biggest area.
func Largest(boxes []image.Rectangle) image.Rectangle {
	var best image.Rectangle
	for _, b := range boxes {
		if b.Dx()*b.Dy() > best.Dx()*best.Dy() {
			best = b
		}
	}
	return best
}
