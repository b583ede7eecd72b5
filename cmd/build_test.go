package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
	"github.com/AnyUserName/imgkit-cli/internal/profile"
)

// The command printed by --check must round-trip every option that
// feeds the fingerprint, so pasting it reproduces the exact run the
// check evaluated.
func TestReproductionCommand(t *testing.T) {
	prev := buildOutDir
	buildOutDir = "/tmp/out"
	t.Cleanup(func() { buildOutDir = prev })

	prof := profile.Profile{
		Name:       "web-responsive",
		Widths:     []int{320, 640},
		Formats:    []string{"webp", "jpeg"},
		Quality:    82,
		Responsive: true,
	}

	got := reproductionCommand("/srv/photos", prof, cache.ModeOn)
	assert.Equal(t,
		"imgkit build /srv/photos --out-dir /tmp/out --widths 320,640 --formats webp,jpeg --quality 82 --cache on",
		got)
}

func TestReproductionCommandBlurAndNonResponsive(t *testing.T) {
	prev := buildOutDir
	buildOutDir = "/tmp/out"
	t.Cleanup(func() { buildOutDir = prev })

	prof := profile.Profile{
		Name:      "placeholder",
		Widths:    []int{32},
		Formats:   []string{"jpeg"},
		Quality:   40,
		Blur:      true,
		BlurSigma: 4.5,
	}

	got := reproductionCommand("/srv/photos", prof, cache.ModeRebuild)
	assert.Equal(t,
		"imgkit build /srv/photos --out-dir /tmp/out --widths 32 --formats jpeg --quality 40 --cache rebuild --blur --blur-sigma 4.5 --responsive=false",
		got)
}
