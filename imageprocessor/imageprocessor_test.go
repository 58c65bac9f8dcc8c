package imageprocessor

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func gradient(t *testing.T, rows, cols int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.SetUCharAt(y, x, uint8((x*7+y*3)%256))
		}
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestFormats(t *testing.T) {
	registry := NewImageLoaderRegistry()
	assert.True(t, registry.CanLoadFile("/a/b/123_header.JPG"))
	assert.True(t, registry.CanLoadFile("capsule.webp"))
	assert.False(t, registry.CanLoadFile("notes.txt"))
	assert.Equal(t, FormatWEBP, GetFileFormat("capsule.WEBP"))
	assert.Equal(t, FormatJPEG, GetFileFormat("x.jpeg"))
	assert.Equal(t, FormatUnknown, GetFileFormat("x.cr3"))

	exts := GetSupportedExtensions()
	assert.Contains(t, exts, ".png")
	assert.IsIncreasing(t, exts)
}

func TestRegistry_LoadsPNGAsGrayscale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "10_header.png")
	src := gradient(t, 30, 40)
	require.True(t, gocv.IMWrite(path, src))

	registry := NewImageLoaderRegistry()
	assert.True(t, registry.CanLoadFile(path))
	assert.True(t, registry.GetLoader(path).CanLoad(path))
	assert.False(t, registry.GetLoader(path).CanLoad(filepath.Join(dir, "absent.png")))
	assert.False(t, registry.CanLoadFile(filepath.Join(dir, "notes.txt")))

	img, err := registry.LoadImage(path)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 30, img.Rows())
	assert.Equal(t, 40, img.Cols())
	assert.Equal(t, 1, img.Channels())
	assert.Equal(t, src.GetUCharAt(5, 9), img.GetUCharAt(5, 9))
}

func TestRegistry_LoadsGIF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capsule.gif")

	palette := color.Palette{color.Gray{Y: 0}, color.Gray{Y: 200}}
	pal := image.NewPaletted(image.Rect(0, 0, 12, 8), palette)
	for x := 6; x < 12; x++ {
		for y := 0; y < 8; y++ {
			pal.SetColorIndex(x, y, 1)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, pal, nil))
	require.NoError(t, f.Close())

	img, err := NewImageLoaderRegistry().LoadImage(path)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 8, img.Rows())
	assert.Equal(t, 12, img.Cols())
	assert.Equal(t, 1, img.Channels())
	assert.Less(t, img.GetUCharAt(3, 1), uint8(20))
	assert.Greater(t, img.GetUCharAt(3, 10), uint8(180))
}

func TestRegistry_Errors(t *testing.T) {
	dir := t.TempDir()
	registry := NewImageLoaderRegistry()

	img, err := registry.LoadImage(filepath.Join(dir, "missing.png"))
	img.Close()
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	img, err = registry.LoadImage(garbage)
	img.Close()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), garbage))
}

func TestGocvMatFromGoImage_OffsetBounds(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(5, 5, 9, 8))
	for x := 5; x < 9; x++ {
		for y := 5; y < 8; y++ {
			rgba.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	mat, err := gocvMatFromGoImage(rgba)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 3, mat.Rows())
	assert.Equal(t, 4, mat.Cols())
	assert.Equal(t, uint8(255), mat.GetUCharAt(2, 3))
}

func TestDifferenceHash(t *testing.T) {
	a := gradient(t, 60, 90)
	hashA, err := ComputeDifferenceHash(a)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashA, "d:"), hashA)

	again, err := ComputeDifferenceHash(a)
	require.NoError(t, err)
	assert.Equal(t, hashA, again)

	flipped := gocv.NewMat()
	defer flipped.Close()
	gocv.Flip(a, &flipped, 1)
	hashB, err := ComputeDifferenceHash(flipped)
	require.NoError(t, err)

	d, err := HashDistance(hashA, hashA)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = HashDistance(hashA, hashB)
	require.NoError(t, err)
	assert.Greater(t, d, 0)

	_, err = HashDistance("bogus", hashA)
	assert.Error(t, err)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = ComputeDifferenceHash(empty)
	assert.Error(t, err)
}
