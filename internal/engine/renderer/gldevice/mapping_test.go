package gldevice

import (
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
)

// These mappings need no GL context.
func TestCompareFuncMapping(t *testing.T) {
	tests := []struct {
		in   renderer.CompareFunc
		want uint32
	}{
		{renderer.CmpNever, gl.NEVER},
		{renderer.CmpLess, gl.LESS},
		{renderer.CmpEqual, gl.EQUAL},
		{renderer.CmpLessEqual, gl.LEQUAL},
		{renderer.CmpGreater, gl.GREATER},
		{renderer.CmpNotEqual, gl.NOTEQUAL},
		{renderer.CmpGreaterEqual, gl.GEQUAL},
		{renderer.CmpAlways, gl.ALWAYS},
	}
	for _, tt := range tests {
		if got := compareFunc(tt.in); got != tt.want {
			t.Errorf("compareFunc(%d) = 0x%x, want 0x%x", tt.in, got, tt.want)
		}
	}
}

func TestStencilOpMapping(t *testing.T) {
	tests := []struct {
		in   renderer.StencilOp
		want uint32
	}{
		{renderer.StencilKeep, gl.KEEP},
		{renderer.StencilZero, gl.ZERO},
		{renderer.StencilReplace, gl.REPLACE},
		{renderer.StencilIncr, gl.INCR},
		{renderer.StencilDecr, gl.DECR},
		{renderer.StencilInvert, gl.INVERT},
	}
	for _, tt := range tests {
		if got := stencilOp(tt.in); got != tt.want {
			t.Errorf("stencilOp(%d) = 0x%x, want 0x%x", tt.in, got, tt.want)
		}
	}
}
