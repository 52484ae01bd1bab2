package render

import (
	"github.com/gosplat/gosplat/tensor"
)

// Render channel names. Anything outside this set is silently skipped by
// the orchestrator, matching the permissive request handling of the
// upstream pipeline.
const (
	RenderTypeRGB              = "rgb"
	RenderTypeInverseDepth     = "inverse_depth"
	RenderTypeHardInverseDepth = "hard_inverse_depth"
)

// Camera exposes the per-frame view parameters the shading pipeline needs.
type Camera interface {
	// Center returns the camera position in world space.
	Center() [3]float32

	// Width and Height are the output image dimensions in pixels.
	Width() int
	Height() int

	// AppearanceID identifies the captured image (and its photometric
	// conditions) this view belongs to.
	AppearanceID() int
}

// PointCloud exposes the per-point attributes of the Gaussian model. The
// point lifecycle (densify/prune) is managed elsewhere; this module only
// reads.
type PointCloud interface {
	NumPoints() int

	// Positions returns [N,3] world-space means.
	Positions() *tensor.Tensor

	// Scales returns [N,3] per-axis extents.
	Scales() *tensor.Tensor

	// Rotations returns [N,4] unit quaternions.
	Rotations() *tensor.Tensor

	// Opacities returns [N,1] alpha values.
	Opacities() *tensor.Tensor

	// AppearanceFeatures returns the [N,F] learned feature vectors feeding
	// appearance shading, distinct from the SH color coefficients.
	AppearanceFeatures() *tensor.Tensor

	// SHFeatures returns the per-point spherical harmonics coefficients.
	SHFeatures() *tensor.Tensor

	// ActiveSHDegree is the SH band currently enabled for evaluation.
	ActiveSHDegree() int

	// FilteredScalesAndOpacities returns the 3D mip pre-filtered
	// (opacities, scales) pair used by the filtered-scale variant.
	FilteredScalesAndOpacities() (opacities, scales *tensor.Tensor, err error)
}

// ProjectionResult is the output of the external projection primitive. It
// is consumed within the frame that produced it and never persisted.
type ProjectionResult struct {
	XYs         *tensor.Tensor // [N,2] screen-space positions
	Depths      *tensor.Tensor // [N,1] view-space depths
	Radii       []int32        // [N] screen-space radii in pixels
	Conics      *tensor.Tensor // [N,3] inverse 2D covariances
	Comp        *tensor.Tensor // [N,1] anti-aliasing compensation factors
	NumTilesHit []int32        // [N] tile hit counts
	Cov3D       *tensor.Tensor // [N,6] 3D covariances
}

// Projector is the external projection primitive.
type Projector interface {
	Project(positions, scales, rotations *tensor.Tensor, camera Camera, scalingModifier float32, filter2DKernelSize float32) (*ProjectionResult, error)
}

// Rasterizer is the external tile rasterization primitive. Colors may have
// any channel count; background must match it.
type Rasterizer interface {
	Rasterize(projection *ProjectionResult, camera Camera, colors, background, opacities *tensor.Tensor, antiAliased bool) (*tensor.Tensor, error)
}

// SHEvaluator is the external spherical-harmonics primitive. The returned
// colors are centered around zero (roughly [-0.5, 0.5]).
type SHEvaluator interface {
	Evaluate(degree int, directions, coefficients *tensor.Tensor) (*tensor.Tensor, error)
}

// BaseRenderer is the warm-up fallback: a full render pass that does not
// apply appearance shading.
type BaseRenderer interface {
	Render(camera Camera, pc PointCloud, background *tensor.Tensor, scalingModifier float32, renderTypes []string) (*RenderOutputBundle, error)
}

// RenderOutputBundle is the per-frame result. Channels that were not
// requested stay nil. The bundle lives for one frame; nothing is cached.
type RenderOutputBundle struct {
	RGB              *tensor.Tensor
	InverseDepth     *tensor.Tensor
	HardInverseDepth *tensor.Tensor

	// ViewspacePoints are the screen-space positions, kept for the
	// point-management heuristics of the outer loop.
	ViewspacePoints *tensor.Tensor

	// GradScale is (width/2, height/2), the factor point management uses
	// to convert screen-space gradients into pixel units.
	GradScale [2]float32

	VisibilityFilter []bool
	Radii            []int32
}

// OutputType tags a render channel for display handling.
type OutputType int

const (
	OutputTypeColor OutputType = iota
	OutputTypeGray
)

// OutputInfo describes one available render channel.
type OutputInfo struct {
	Key  string
	Type OutputType
}

// AvailableOutputs lists the channels the appearance renderer can produce.
func AvailableOutputs() map[string]OutputInfo {
	return map[string]OutputInfo{
		RenderTypeRGB:              {Key: RenderTypeRGB, Type: OutputTypeColor},
		RenderTypeInverseDepth:     {Key: RenderTypeInverseDepth, Type: OutputTypeGray},
		RenderTypeHardInverseDepth: {Key: RenderTypeHardInverseDepth, Type: OutputTypeGray},
	}
}
