package render

import (
	"fmt"
	"log"

	"github.com/chewxy/math32"

	"github.com/gosplat/gosplat/tensor"
)

// depthEps keeps the inverse-depth reciprocal finite at zero depth.
const depthEps = 1e-8

// projectionSource is the single override point between renderer variants:
// it produces the projection result together with the opacities that go
// with it.
type projectionSource interface {
	preprocess(pc PointCloud, camera Camera, scalingModifier float32) (*ProjectionResult, *tensor.Tensor, error)
}

// rawProjection projects with the point cloud's raw scales and opacities.
type rawProjection struct {
	projector Projector
	kernel    float32
}

func (s *rawProjection) preprocess(pc PointCloud, camera Camera, scalingModifier float32) (*ProjectionResult, *tensor.Tensor, error) {
	projection, err := s.projector.Project(pc.Positions(), pc.Scales(), pc.Rotations(), camera, scalingModifier, s.kernel)
	if err != nil {
		return nil, nil, fmt.Errorf("projection failed: %v", err)
	}
	return projection, pc.Opacities(), nil
}

// filteredProjection projects with the 3D mip pre-filtered scales and
// opacities from the point collaborator.
type filteredProjection struct {
	projector Projector
	kernel    float32
}

func (s *filteredProjection) preprocess(pc PointCloud, camera Camera, scalingModifier float32) (*ProjectionResult, *tensor.Tensor, error) {
	opacities, scales, err := pc.FilteredScalesAndOpacities()
	if err != nil {
		return nil, nil, fmt.Errorf("3D filtering failed: %v", err)
	}
	projection, err := s.projector.Project(pc.Positions(), scales, pc.Rotations(), camera, scalingModifier, s.kernel)
	if err != nil {
		return nil, nil, fmt.Errorf("projection failed: %v", err)
	}
	return projection, opacities, nil
}

// AppearanceRenderer drives one frame of appearance-conditioned rendering:
// project, mask by visibility, shade each requested channel, rasterize and
// assemble the output bundle.
type AppearanceRenderer struct {
	config RendererConfig

	rasterizer Rasterizer
	sh         SHEvaluator
	base       BaseRenderer
	source     projectionSource

	model *AppearanceModel
}

// NewAppearanceRenderer creates the raw-opacity variant.
func NewAppearanceRenderer(config RendererConfig, projector Projector, rasterizer Rasterizer, sh SHEvaluator, base BaseRenderer) (*AppearanceRenderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AppearanceRenderer{
		config:     config,
		rasterizer: rasterizer,
		sh:         sh,
		base:       base,
		source:     &rawProjection{projector: projector, kernel: config.Filter2DKernelSize},
	}, nil
}

// NewMipAppearanceRenderer creates the filtered-scale variant. It runs the
// identical frame state machine but sources pre-filtered opacities and
// scales from the point collaborator.
func NewMipAppearanceRenderer(config RendererConfig, projector Projector, rasterizer Rasterizer, sh SHEvaluator, base BaseRenderer) (*AppearanceRenderer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AppearanceRenderer{
		config:     config,
		rasterizer: rasterizer,
		sh:         sh,
		base:       base,
		source:     &filteredProjection{projector: projector, kernel: config.Filter2DKernelSize},
	}, nil
}

// Config returns the renderer configuration, including any appearance
// count patched in by Setup.
func (r *AppearanceRenderer) Config() RendererConfig {
	return r.config
}

// Model returns the materialized appearance model, or nil before Setup.
func (r *AppearanceRenderer) Model() *AppearanceModel {
	return r.model
}

// Setup materializes the appearance model. When the configured appearance
// count is not positive it is inferred as max(observed id) + 1 and frozen.
// Setup runs once; a second call is a configuration error.
func (r *AppearanceRenderer) Setup(observedAppearanceIDs []int) error {
	if r.model != nil {
		return &ConfigError{Field: "n_appearances", Reason: "appearance model already set up"}
	}

	if r.config.Model.NAppearances <= 0 {
		if len(observedAppearanceIDs) == 0 {
			return &ConfigError{Field: "n_appearances", Reason: "not configured and no appearance ids observed"}
		}
		maxID := 0
		for _, id := range observedAppearanceIDs {
			if id < 0 {
				return &ConfigError{Field: "n_appearances", Reason: fmt.Sprintf("observed negative appearance id %d", id)}
			}
			if id > maxID {
				maxID = id
			}
		}
		r.config.Model.NAppearances = maxID + 1
		log.Printf("Inferred %d appearances from observed ids", r.config.Model.NAppearances)
	}

	return r.materialize(r.config.Model.NAppearances)
}

func (r *AppearanceRenderer) materialize(nAppearances int) error {
	r.config.Model.NAppearances = nAppearances
	model, err := NewAppearanceModel(r.config.Model)
	if err != nil {
		return err
	}
	r.model = model
	return nil
}

// Forward renders one frame. Unknown entries in renderTypes are skipped
// without error; a nil renderTypes requests the RGB channel.
func (r *AppearanceRenderer) Forward(camera Camera, pc PointCloud, background *tensor.Tensor, scalingModifier float32, renderTypes []string) (*RenderOutputBundle, error) {
	if r.model == nil {
		return nil, ErrUninitialized
	}
	if renderTypes == nil {
		renderTypes = []string{RenderTypeRGB}
	}

	projection, opacities, err := r.source.preprocess(pc, camera, scalingModifier)
	if err != nil {
		return nil, err
	}

	n := pc.NumPoints()
	if len(projection.Radii) != n {
		return nil, &ShapeError{What: "projected radii count", Expected: n, Actual: len(projection.Radii)}
	}
	if opacities.Shape[0] != n {
		return nil, &ShapeError{What: "opacity count", Expected: n, Actual: opacities.Shape[0]}
	}

	visible := make([]bool, n)
	anyVisible := false
	for i, radius := range projection.Radii {
		if radius > 0 {
			visible[i] = true
			anyVisible = true
		}
	}

	// Fold the anti-aliasing compensation into the opacities once, here.
	// Every rasterization call below passes antiAliased=false so the
	// factor is never applied twice.
	if r.config.AntiAliased {
		opacities, err = tensor.MulAutograd(opacities, projection.Comp)
		if err != nil {
			return nil, fmt.Errorf("anti-aliasing compensation failed: %v", err)
		}
	}

	bundle := &RenderOutputBundle{
		ViewspacePoints:  projection.XYs,
		GradScale:        [2]float32{float32(camera.Width()) / 2, float32(camera.Height()) / 2},
		VisibilityFilter: visible,
		Radii:            projection.Radii,
	}

	for _, renderType := range renderTypes {
		switch renderType {
		case RenderTypeRGB:
			colors, err := r.shadeRGB(camera, pc, visible, anyVisible)
			if err != nil {
				return nil, err
			}
			bundle.RGB, err = r.rasterizer.Rasterize(projection, camera, colors, background, opacities, false)
			if err != nil {
				return nil, fmt.Errorf("rgb rasterization failed: %v", err)
			}

		case RenderTypeInverseDepth:
			inverseDepth, err := inverseDepthColors(projection.Depths)
			if err != nil {
				return nil, err
			}
			zeroBackground, err := tensor.Zeros([]int{1})
			if err != nil {
				return nil, err
			}
			bundle.InverseDepth, err = r.rasterizer.Rasterize(projection, camera, inverseDepth, zeroBackground, opacities, false)
			if err != nil {
				return nil, fmt.Errorf("inverse depth rasterization failed: %v", err)
			}

		case RenderTypeHardInverseDepth:
			inverseDepth, err := inverseDepthColors(projection.Depths)
			if err != nil {
				return nil, err
			}
			hardOpacities, err := hardenOpacities(opacities)
			if err != nil {
				return nil, err
			}
			zeroBackground, err := tensor.Zeros([]int{1})
			if err != nil {
				return nil, err
			}
			bundle.HardInverseDepth, err = r.rasterizer.Rasterize(projection, camera, inverseDepth, zeroBackground, hardOpacities, false)
			if err != nil {
				return nil, fmt.Errorf("hard inverse depth rasterization failed: %v", err)
			}

		default:
			// Unrecognized channel names are skipped, not rejected.
		}
	}

	return bundle, nil
}

// shadeRGB computes the composed per-point colors for the rgb channel: the
// SH base color plus the predicted appearance offset, clamped to [0,1] for
// visible points, zero elsewhere.
func (r *AppearanceRenderer) shadeRGB(camera Camera, pc PointCloud, visible []bool, anyVisible bool) (*tensor.Tensor, error) {
	n := pc.NumPoints()
	if !anyVisible {
		return tensor.Zeros([]int{n, 3})
	}

	// View directions come from detached positions: appearance shading must
	// not push gradients into the geometry.
	positions := pc.Positions().Detach()
	visiblePositions, err := tensor.SelectRows(positions, visible)
	if err != nil {
		return nil, fmt.Errorf("position masking failed: %v", err)
	}
	directions, err := unitViewDirections(visiblePositions, camera.Center())
	if err != nil {
		return nil, err
	}

	shCoefficients, err := tensor.SelectRowsAutograd(pc.SHFeatures(), visible)
	if err != nil {
		return nil, fmt.Errorf("SH coefficient masking failed: %v", err)
	}
	shColors, err := r.sh.Evaluate(pc.ActiveSHDegree(), directions, shCoefficients)
	if err != nil {
		return nil, fmt.Errorf("spherical harmonics evaluation failed: %v", err)
	}
	// SH output is centered on zero; shift into [0,1]-centered range.
	baseColors, err := tensor.AffineAutograd(shColors, 1, 0.5)
	if err != nil {
		return nil, err
	}

	features := pc.AppearanceFeatures()
	if features.Shape[0] != n {
		return nil, &ShapeError{What: "appearance feature count", Expected: n, Actual: features.Shape[0]}
	}
	visibleFeatures, err := tensor.SelectRowsAutograd(features, visible)
	if err != nil {
		return nil, fmt.Errorf("feature masking failed: %v", err)
	}

	offsets, err := r.model.Predict(visibleFeatures, camera.AppearanceID(), directions)
	if err != nil {
		return nil, err
	}

	composed, err := tensor.AddAutograd(baseColors, offsets)
	if err != nil {
		return nil, fmt.Errorf("color composition failed: %v", err)
	}
	clamped, err := tensor.ClampAutograd(composed, 0, 1)
	if err != nil {
		return nil, err
	}

	// Invisible points keep color zero and contribute nothing.
	return tensor.ScatterRows(clamped, visible)
}

// inverseDepthColors maps depths to 1/(max(depth,0) + eps).
func inverseDepthColors(depths *tensor.Tensor) (*tensor.Tensor, error) {
	clamped, err := tensor.ClampMin(depths, 0)
	if err != nil {
		return nil, err
	}
	shifted, err := tensor.Affine(clamped, 1, depthEps)
	if err != nil {
		return nil, err
	}
	return tensor.Reciprocal(shifted)
}

// hardenOpacities forces the rasterized opacity to one while keeping the
// gradient path of the trained opacities: opacities + (1 - detach(opacities)).
func hardenOpacities(opacities *tensor.Tensor) (*tensor.Tensor, error) {
	ones, err := tensor.Ones(opacities.Shape)
	if err != nil {
		return nil, err
	}
	complement, err := tensor.Sub(ones, opacities.Detach())
	if err != nil {
		return nil, err
	}
	return tensor.AddAutograd(opacities, complement)
}

// unitViewDirections computes normalized directions from the camera center
// to each position.
func unitViewDirections(positions *tensor.Tensor, center [3]float32) (*tensor.Tensor, error) {
	if len(positions.Shape) != 2 || positions.Shape[1] != 3 {
		return nil, &ShapeError{What: "position dims", Expected: 3, Actual: lastDim(positions)}
	}

	n := positions.Shape[0]
	directions, err := tensor.Zeros([]int{n, 3})
	if err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		dx := positions.Data[i*3] - center[0]
		dy := positions.Data[i*3+1] - center[1]
		dz := positions.Data[i*3+2] - center[2]
		norm := math32.Sqrt(dx*dx + dy*dy + dz*dz)
		if norm == 0 {
			return nil, fmt.Errorf("point %d coincides with the camera center", i)
		}
		directions.Data[i*3] = dx / norm
		directions.Data[i*3+1] = dy / norm
		directions.Data[i*3+2] = dz / norm
	}

	return directions, nil
}
