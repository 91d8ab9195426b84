// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package bindless

import "github.com/vgpu/framegraph/driver"

func driverDim() driver.Dim3D { return driver.Dim3D{Width: 4, Height: 4, Depth: 1} }

var samplingZero driver.Sampling

func driverLimitsSmall() driver.Limits {
	return driver.Limits{
		MaxBindlessTextures: initialCapacity, // exactly the starting size: any growth fails
		MaxBindlessSamplers: initialCapacity,
	}
}
