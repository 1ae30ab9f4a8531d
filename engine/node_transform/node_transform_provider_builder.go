package node_transform

import (
	"github.com/Carmen-Shannon/oxy-stream/common"

	"github.com/jmalloc/twelf/src/twelf"
)

// CdfToLocalZUpToYUp converts the z-up CDF frame into the y-up frame the renderer
// uses for model-local coordinates: (x, y, z) -> (x, z, -y).
var CdfToLocalZUpToYUp = common.Mat4{
	1, 0, 0, 0,
	0, 0, -1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// NodeTransformProviderBuilderOption is a functional option for configuring a NodeTransformProvider.
type NodeTransformProviderBuilderOption func(*nodeTransformProvider)

// WithModelToLocalTransform overrides the conversion from the CDF frame to the renderer's
// local model frame. The matrix must be invertible; a singular matrix is ignored and logged.
//
// Parameters:
//   - m: the CDF to local conversion matrix
//
// Returns:
//   - NodeTransformProviderBuilderOption: a function that applies the conversion option
func WithModelToLocalTransform(m common.Mat4) NodeTransformProviderBuilderOption {
	return func(p *nodeTransformProvider) {
		inv, ok := m.Inverse()
		if !ok {
			p.logger.Log("[NodeTransform] ignoring singular model to local transform")
			return
		}
		p.cdfToLocal = m
		p.localToCdf = inv
	}
}

// WithCdfToWorldTransform sets the initial CDF to world matrix. A singular matrix is
// ignored and logged.
//
// Parameters:
//   - m: the initial CDF to world matrix
//
// Returns:
//   - NodeTransformProviderBuilderOption: a function that applies the base transform option
func WithCdfToWorldTransform(m common.Mat4) NodeTransformProviderBuilderOption {
	return func(p *nodeTransformProvider) {
		inv, ok := m.Inverse()
		if !ok {
			p.logger.Log("[NodeTransform] ignoring singular initial cdf to world transform")
			return
		}
		p.cdfToWorld = m
		p.worldToCdf = inv
	}
}

// WithLogger sets the logger used by the provider.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - NodeTransformProviderBuilderOption: a function that applies the logger option
func WithLogger(logger twelf.Logger) NodeTransformProviderBuilderOption {
	return func(p *nodeTransformProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}
