package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var webpJpeg = []Format{{Name: "webp", Ext: "webp"}, {Name: "jpeg", Ext: "jpeg"}}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "photo-640.webp", OutputPath("photo", 640, "webp"))
	assert.Equal(t, "gallery/photo-320.jpeg", OutputPath("gallery/photo", 320, "jpeg"))
}

func TestForImage(t *testing.T) {
	p := ForImage("photo.jpg", "photo", []int{320, 640}, webpJpeg)

	require.Len(t, p.Outputs, 4)
	assert.Equal(t, "photo.jpg", p.Source)
	assert.Equal(t, Output{Format: "webp", Width: 320, Path: "photo-320.webp"}, p.Outputs[0])
	assert.Equal(t, Output{Format: "webp", Width: 640, Path: "photo-640.webp"}, p.Outputs[1])
	assert.Equal(t, Output{Format: "jpeg", Width: 320, Path: "photo-320.jpeg"}, p.Outputs[2])
	assert.Equal(t, Output{Format: "jpeg", Width: 640, Path: "photo-640.jpeg"}, p.Outputs[3])
}

func TestForImageKeepsWidthOrder(t *testing.T) {
	p := ForImage("a.png", "a", []int{100, 200, 300}, []Format{{Name: "png", Ext: "png"}})
	prev := 0
	for _, o := range p.Outputs {
		assert.Greater(t, o.Width, prev)
		prev = o.Width
	}
}

func TestDetectCollisionsCaseInsensitive(t *testing.T) {
	// Photo.JPG and photo.jpg both plan photo-640.webp on a
	// case-insensitive target filesystem.
	plans := []ImagePlan{
		ForImage("Photo.JPG", "Photo", []int{640}, webpJpeg),
		ForImage("photo.jpg", "photo", []int{640}, webpJpeg),
	}

	err := DetectCollisions(plans)
	var ce *CollisionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Photo.JPG", ce.First)
	assert.Equal(t, "photo.jpg", ce.Second)
	assert.Equal(t, "Photo-640.webp", ce.Path)
}

func TestDetectCollisionsCleanBatch(t *testing.T) {
	plans := []ImagePlan{
		ForImage("a.jpg", "a", []int{320, 640}, webpJpeg),
		ForImage("b.jpg", "b", []int{320, 640}, webpJpeg),
		ForImage("sub/a.jpg", "sub/a", []int{320, 640}, webpJpeg),
	}
	assert.NoError(t, DetectCollisions(plans))
}

func TestDetectCollisionsEmpty(t *testing.T) {
	assert.NoError(t, DetectCollisions(nil))
}
