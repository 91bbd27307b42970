package facedet_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	facedet "github.com/olajep/face-detect/core"
)

var (
	allOnes  = [8]uint32{^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0)}
	allZeros [8]uint32
)

// acceptAllCascade builds a single-stage classifier that accepts every
// window position regardless of pixel content.
func acceptAllCascade(t *testing.T, windowWidth, windowHeight int) *facedet.Cascade {
	t.Helper()
	b := facedet.NewCascadeBuilder(windowWidth, windowHeight)
	b.AddDecision(1, 1, 0, 0, 1, allOnes)
	b.AddStage(1)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("building the accept-all cascade: %v", err)
	}
	return c
}

// rejectAllCascade builds a single-stage classifier that rejects every
// window position.
func rejectAllCascade(t *testing.T, windowWidth, windowHeight int) *facedet.Cascade {
	t.Helper()
	b := facedet.NewCascadeBuilder(windowWidth, windowHeight)
	b.AddDecision(1, 1, 0, 0, 1, allZeros)
	b.AddStage(1)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("building the reject-all cascade: %v", err)
	}
	return c
}

// constImage allocates an image filled with a single gray value.
func constImage(t *testing.T, width, height int, value uint8) *facedet.Image {
	t.Helper()
	img, err := facedet.NewImage(width, height)
	if err != nil {
		t.Fatalf("allocating a %dx%d image: %v", width, height, err)
	}
	for i := range img.Data {
		img.Data[i] = value
	}
	return img
}

func TestCascadeBuilderProducesValidClassifier(t *testing.T) {
	c := acceptAllCascade(t, 8, 10)
	if c.WindowWidth() != 8 || c.WindowHeight() != 10 {
		t.Fatalf("window is %dx%d, want 8x10", c.WindowWidth(), c.WindowHeight())
	}
	if _, err := facedet.UnpackCascade(c.Blob()); err != nil {
		t.Fatalf("re-unpacking a built cascade: %v", err)
	}
}

func TestCascadeSaveLoadRoundtrip(t *testing.T) {
	c := acceptAllCascade(t, 8, 8)
	name := filepath.Join(t.TempDir(), "classifier.bin")
	if err := facedet.SaveCascade(c, name); err != nil {
		t.Fatalf("saving the cascade: %v", err)
	}
	loaded, err := facedet.LoadCascade(name)
	if err != nil {
		t.Fatalf("loading the cascade back: %v", err)
	}
	if loaded.Checksum() != c.Checksum() {
		t.Fatalf("checksum changed across save/load: %d != %d", loaded.Checksum(), c.Checksum())
	}
	if loaded.WindowWidth() != 8 || loaded.WindowHeight() != 8 {
		t.Fatalf("window is %dx%d after load, want 8x8", loaded.WindowWidth(), loaded.WindowHeight())
	}
}

func TestCascadeChecksumIsSignedByteSum(t *testing.T) {
	c := acceptAllCascade(t, 8, 8)
	sum := 0
	for _, b := range c.Blob() {
		sum += int(int8(b))
	}
	if got := c.Checksum(); got != sum {
		t.Fatalf("checksum is %d, want %d", got, sum)
	}
}

func TestUnpackCascadeValidation(t *testing.T) {
	valid := acceptAllCascade(t, 8, 8).Blob()

	mutate := func(off int, v uint32) []byte {
		blob := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(blob[off:], v)
		return blob
	}

	cases := []struct {
		name string
		blob []byte
		want error
	}{
		{"truncated", valid[:20], facedet.ErrCascadeTruncated},
		{"no meta node", mutate(0, 0), facedet.ErrCascadeNoMeta},
		{"tiny window", mutate(4, 2), facedet.ErrWindowTooSmall},
		{"no leading decision", mutate(12, 1), facedet.ErrCascadeNoDecision},
		{"no trailing final", mutate(len(valid)-4, 7), facedet.ErrCascadeNoFinal},
		{"no trailing stage", mutate(len(valid)-12, 2), facedet.ErrCascadeNoStage},
	}
	for _, tc := range cases {
		if _, err := facedet.UnpackCascade(tc.blob); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		if _, err := facedet.UnpackCascade(tc.blob); !errors.Is(err, facedet.ErrCorruptData) {
			t.Errorf("%s: %v does not wrap the corrupt-data kind", tc.name, err)
		}
	}
}

func TestUnpackCascadeRejectsConsecutiveStages(t *testing.T) {
	b := facedet.NewCascadeBuilder(8, 8)
	b.AddDecision(1, 1, 0, 0, 1, allOnes)
	b.AddStage(1)
	b.AddStage(1)
	if _, err := b.Build(); !errors.Is(err, facedet.ErrCorruptData) {
		t.Fatalf("two stage nodes in a row: got %v, want a corrupt-data error", err)
	}
}

func TestUnpackCascadeRejectsTrailingBytes(t *testing.T) {
	valid := acceptAllCascade(t, 8, 8).Blob()

	// Duplicate the stage and final nodes so the endpoint checks still
	// pass but bytes remain after the first final node.
	blob := append(append([]byte(nil), valid...), valid[len(valid)-12:]...)
	if _, err := facedet.UnpackCascade(blob); !errors.Is(err, facedet.ErrCorruptData) {
		t.Fatalf("trailing bytes: got %v, want a corrupt-data error", err)
	}
}

func TestUnpackCascadeStreamToleratesPadding(t *testing.T) {
	valid := acceptAllCascade(t, 8, 8).Blob()
	padded := append(append([]byte(nil), valid...), make([]byte, 20)...)

	c, consumed, err := facedet.UnpackCascadeStream(padded)
	if err != nil {
		t.Fatalf("decoding a padded stream: %v", err)
	}
	if consumed != len(valid) {
		t.Fatalf("consumed %d bytes, want %d", consumed, len(valid))
	}
	if c.WindowWidth() != 8 || c.WindowHeight() != 8 {
		t.Fatalf("window is %dx%d, want 8x8", c.WindowWidth(), c.WindowHeight())
	}
}

func TestLoadCascadeRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	c := acceptAllCascade(t, 8, 8)

	name := filepath.Join(dir, "ok.bin")
	if err := facedet.SaveCascade(c, name); err != nil {
		t.Fatalf("saving the cascade: %v", err)
	}

	if _, err := facedet.LoadCascade(filepath.Join(dir, "missing.bin")); err == nil {
		t.Fatal("loading a missing file succeeded")
	}

	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading the saved file: %v", err)
	}
	data[0] ^= 0xff
	bad := filepath.Join(dir, "badmagic.bin")
	if err := os.WriteFile(bad, data, 0644); err != nil {
		t.Fatalf("writing the corrupted file: %v", err)
	}
	if _, err := facedet.LoadCascade(bad); !errors.Is(err, facedet.ErrBadMagic) {
		t.Fatalf("wrong magic: got %v, want %v", err, facedet.ErrBadMagic)
	}

	data[0] ^= 0xff
	short := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(short, data[:len(data)-4], 0644); err != nil {
		t.Fatalf("writing the truncated file: %v", err)
	}
	if _, err := facedet.LoadCascade(short); !errors.Is(err, facedet.ErrCorruptData) {
		t.Fatalf("truncated payload: got %v, want a corrupt-data error", err)
	}
}
