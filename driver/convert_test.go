package driver

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestConvertPixelFmt(t *testing.T) {
	cases := []struct {
		in   PixelFmt
		want gputypes.TextureFormat
	}{
		{RGBA8Unorm, gputypes.TextureFormatRGBA8Unorm},
		{BGRA8Unorm, gputypes.TextureFormatBGRA8Unorm},
		{R16Float, gputypes.TextureFormatR16Float},
		{D32Float, gputypes.TextureFormatDepth32Float},
		{D24UnormS8UInt, gputypes.TextureFormatDepth24PlusStencil8},
	}
	for _, c := range cases {
		if got := ConvertPixelFmt(c.in); got != c.want {
			t.Errorf("ConvertPixelFmt(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestConvertExtent(t *testing.T) {
	got := ConvertExtent(Dim3D{Width: 640, Height: 480, Depth: 2})
	want := gputypes.Extent3D{Width: 640, Height: 480, DepthOrArrayLayers: 2}
	if got != want {
		t.Errorf("ConvertExtent = %+v, want %+v", got, want)
	}
}
