package driver

import "github.com/gogpu/gputypes"

// ConvertPixelFmt maps a PixelFmt onto the corresponding
// gputypes.TextureFormat, for a backend built on the gogpu
// ecosystem (e.g. a WebGPU/GLES implementation of GPU) rather
// than a native Vulkan one. The combined depth/stencil formats
// map to gputypes' Depth24PlusStencil8/Depth32FloatStencil8, and
// the stencil-only S8UInt maps to Depth24PlusStencil8. Formats
// with no case here (the signed-normalized RGBA8Norm, RG8Norm
// and R8Norm) fall back to RGBA8Unorm.
//
// Grounded on gogpu-wgpu/hal/gles's TextureFormatToGL: a flat
// switch from one ecosystem's format enum to another's, not a
// computed bit-twiddled conversion.
func ConvertPixelFmt(pf PixelFmt) gputypes.TextureFormat {
	switch pf {
	case RGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm
	case RGBA8sRGB:
		return gputypes.TextureFormatRGBA8UnormSrgb
	case BGRA8Unorm:
		return gputypes.TextureFormatBGRA8Unorm
	case BGRA8sRGB:
		return gputypes.TextureFormatBGRA8UnormSrgb
	case RG8Unorm:
		return gputypes.TextureFormatRG8Unorm
	case R8Unorm:
		return gputypes.TextureFormatR8Unorm
	case RGBA16Float:
		return gputypes.TextureFormatRGBA16Float
	case RG16Float:
		return gputypes.TextureFormatRG16Float
	case R16Float:
		return gputypes.TextureFormatR16Float
	case RGBA32Float:
		return gputypes.TextureFormatRGBA32Float
	case RG32Float:
		return gputypes.TextureFormatRG32Float
	case R32Float:
		return gputypes.TextureFormatR32Float
	case D16Unorm:
		return gputypes.TextureFormatDepth16Unorm
	case D32Float:
		return gputypes.TextureFormatDepth32Float
	case S8UInt, D24UnormS8UInt:
		return gputypes.TextureFormatDepth24PlusStencil8
	case D32FloatS8UInt:
		return gputypes.TextureFormatDepth32FloatStencil8
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// ConvertExtent converts a Dim3D into the gputypes.Extent3D a
// gogpu-ecosystem backend's texture-creation call expects.
func ConvertExtent(d Dim3D) gputypes.Extent3D {
	return gputypes.Extent3D{
		Width:              uint32(d.Width),
		Height:             uint32(d.Height),
		DepthOrArrayLayers: uint32(d.Depth),
	}
}
