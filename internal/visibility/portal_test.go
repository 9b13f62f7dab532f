package visibility

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/internal/visengine"
	"github.com/Faultbox/midgard-vis/internal/world"
)

func addTrapdoor(a *Adapter, node visengine.NodeID) {
	a.Portals().Add(node, &world.Portal{
		Vertices:  []mgl32.Vec3{{-1, 0, -1}, {1, 0, -1}, {1, 0, 1}, {-1, 0, 1}},
		Triangles: []uint16{0, 1, 2, 0, 2, 3},
	})
}

func TestPortalStencilMask(t *testing.T) {
	keep := renderer.StencilKeep
	tests := []struct {
		name              string
		test, write       int
		fail, zfail, pass renderer.StencilOp
	}{
		{"entering increments", 0, 1, keep, keep, renderer.StencilIncr},
		{"deeper level increments", 2, 3, keep, keep, renderer.StencilIncr},
		{"leaving decrements on pass and depth fail", 3, 2, keep, renderer.StencilDecr, renderer.StencilDecr},
		{"same level decrements", 1, 1, keep, renderer.StencilDecr, renderer.StencilDecr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := hardwareDevice()
			a := newAdapter(t, dev, DefaultFlags(), nil)
			addTrapdoor(a, 5)
			toCamera := mgl32.Translate3D(0, -2, -8)

			cmd := a.Commander()
			cmd.Command(visengine.QueryBegin{})
			dev.Reset()
			cmd.Command(visengine.StencilMask{
				Instance: visengine.Instance{Node: 5, ObjectToCamera: toCamera},
				Test:     tt.test,
				Write:    tt.write,
			})

			draws := dev.Draws()
			require.Len(t, draws, 1)
			st := draws[0].State
			assert.Equal(t, renderer.ColorWriteNone, st.ColorWrite, "mask draws without colour")
			assert.False(t, st.DepthWrite, "mask draws without depth writes")
			assert.Equal(t, renderer.CullNone, st.Cull)
			assert.Equal(t, toCamera, st.View)
			assert.Equal(t, renderer.UntexturedMaterial, st.Material)
			assert.True(t, st.Stencil.Enable)
			assert.Equal(t, renderer.CmpEqual, st.Stencil.Func)
			assert.Equal(t, tt.test, st.Stencil.Ref)
			assert.Equal(t, uint32(stencilBits), st.Stencil.Mask)
			assert.Equal(t, [3]renderer.StencilOp{tt.fail, tt.zfail, tt.pass},
				[3]renderer.StencilOp{st.Stencil.Fail, st.Stencil.ZFail, st.Stencil.Pass})

			after := dev.State()
			assert.Equal(t, renderer.CmpEqual, after.Stencil.Func)
			assert.Equal(t, tt.write, after.Stencil.Ref, "later draws test the written level")
			assert.Equal(t, uint32(stencilBits), after.Stencil.Mask)
			assert.Equal(t, [3]renderer.StencilOp{keep, keep, keep},
				[3]renderer.StencilOp{after.Stencil.Fail, after.Stencil.ZFail, after.Stencil.Pass})
			assert.True(t, after.DepthWrite)
			assert.Equal(t, [2]float32{0, 1}, after.DepthRange)
			assert.NotEqual(t, toCamera, after.View, "view restored after the mask draw")

			cmd.Command(visengine.QueryEnd{})
			assert.False(t, dev.State().Stencil.Enable, "query end disables stencil")
		})
	}
}

func TestPortalStencilMaskSkips(t *testing.T) {
	t.Run("stale portal", func(t *testing.T) {
		dev := hardwareDevice()
		a := newAdapter(t, dev, DefaultFlags(), nil)

		cmd := a.Commander()
		cmd.Command(visengine.QueryBegin{})
		dev.Reset()
		cmd.Command(visengine.StencilMask{Instance: visengine.Instance{Node: 404}, Test: 0, Write: 1})
		assert.Empty(t, dev.Draws())
		assert.False(t, dev.State().Stencil.Enable)
		cmd.Command(visengine.QueryEnd{})
	})

	t.Run("after colour pass", func(t *testing.T) {
		dev := hardwareDevice()
		a := newAdapter(t, dev, DefaultFlags(), nil)
		addTrapdoor(a, 5)
		var log []string
		addItem(a, 1, "a", &log)

		cmd := a.Commander()
		cmd.Command(visengine.QueryBegin{})
		cmd.Command(visible(1))
		dev.Reset()
		cmd.Command(visengine.StencilMask{Instance: visengine.Instance{Node: 5}, Test: 0, Write: 1})
		assert.Empty(t, dev.Draws(), "masks after the colour pass began are ignored")
		assert.False(t, dev.State().Stencil.Enable)
		cmd.Command(visengine.QueryEnd{})
	})

	t.Run("first visible instance disables stencil", func(t *testing.T) {
		dev := hardwareDevice()
		a := newAdapter(t, dev, DefaultFlags(), nil)
		addTrapdoor(a, 5)
		var log []string
		addItem(a, 1, "a", &log)

		cmd := a.Commander()
		cmd.Command(visengine.QueryBegin{})
		cmd.Command(visengine.StencilMask{Instance: visengine.Instance{Node: 5}, Test: 0, Write: 1})
		require.True(t, dev.State().Stencil.Enable)
		cmd.Command(visible(1))
		assert.False(t, lastDraw(t, dev).State.Stencil.Enable)
		cmd.Command(visengine.QueryEnd{})
	})
}
