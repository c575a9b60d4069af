package commands

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/soypat/gpix"
)

func TestWriteHistogram(t *testing.T) {
	var buf bytes.Buffer
	h := gpix.Histogram{5, 0, 0, 95}
	if err := writeHistogram(&buf, h, 10); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "100 pixels in 4 bins") {
		t.Errorf("header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], " #") {
		t.Errorf("small bin bar %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], strings.Repeat("#", 10)) {
		t.Errorf("peak bin bar %q", lines[2])
	}
}

func TestFitImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	if got := fitImage(img, 0); got != image.Image(img) {
		t.Error("max dim 0 should keep image")
	}
	if got := fitImage(img, 400); got.Bounds().Dx() != 400 {
		t.Error("image within bounds should not be resized")
	}
	got := fitImage(img, 200)
	if b := got.Bounds(); b.Dx() != 200 || b.Dy() != 50 {
		t.Errorf("fit to 200 = %v", b)
	}
}

func TestHalveCPU(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{128, 128, 128, 255})
		}
	}
	if err := imaging.Save(img, in); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"halve", "--cpu", in, out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	result, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	pb := gpix.FromImage(result)
	if r, g, b, a := pb.At(1, 1); r != 64 || g != 64 || b != 64 || a != 255 {
		t.Errorf("pixel = %d %d %d %d, want 64 64 64 255", r, g, b, a)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}
}
