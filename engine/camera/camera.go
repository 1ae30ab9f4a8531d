package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-stream/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	// Camera position (computed from target + spherical coords)
	position [3]float32
	target   [3]float32

	// Spherical coordinates (offset from target)
	radius    float32
	azimuth   float32 // Horizontal angle around Y axis
	elevation float32 // Vertical angle from horizontal plane

	viewMatrix           common.Mat4
	projectionMatrix     common.Mat4
	viewProjectionMatrix common.Mat4
	frustum              common.Frustum
}

// Camera is an orbit camera: it sits on a sphere around a target point and looks at it.
// It provides the view-projection matrix and the frustum used to cull sector boxes.
type Camera interface {
	// Position returns the camera's world position.
	//
	// Returns:
	//   - common.Vec3: the eye position
	Position() common.Vec3

	// Target returns the point the camera looks at.
	Target() common.Vec3

	// ViewProjectionMatrix returns the current combined view-projection matrix (column-major).
	//
	// Returns:
	//   - common.Mat4: the combined view-projection matrix
	ViewProjectionMatrix() common.Mat4

	// Frustum returns the view frustum of the current view-projection matrix.
	Frustum() common.Frustum

	// SetTarget moves the orbit center and recomputes matrices.
	//
	// Parameters:
	//   - target: the new orbit center
	SetTarget(target common.Vec3)

	// SetOrbit sets the spherical coordinates around the target and recomputes matrices.
	// Elevation is clamped just short of the poles.
	//
	// Parameters:
	//   - radius: distance from the target
	//   - azimuth: horizontal angle around the Y axis in radians
	//   - elevation: vertical angle from the horizontal plane in radians
	SetOrbit(radius, azimuth, elevation float32)

	// Frame points the camera at box and backs off until the whole box fits the view.
	//
	// Parameters:
	//   - box: the region to frame
	Frame(box common.Box3)
}

var _ Camera = &cameraImpl{}

// maxElevation keeps the view direction away from the up vector.
const maxElevation = float32(math.Pi/2 - 0.01)

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:        &sync.Mutex{},
		up:        [3]float32{0, 1, 0},
		fov:       45.0 * (math.Pi / 180.0), // radians
		aspect:    1.0,
		near:      0.1,
		far:       1000.0,
		radius:    50.0,
		elevation: float32(math.Pi / 6),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) ViewProjectionMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) SetTarget(target common.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetOrbit(radius, azimuth, elevation float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = radius
	c.azimuth = azimuth
	c.elevation = elevation
	c.updateMatrices()
}

func (c *cameraImpl) Frame(box common.Box3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var half float32
	for i := 0; i < 3; i++ {
		c.target[i] = (box.Min[i] + box.Max[i]) / 2
		half = max(half, (box.Max[i]-box.Min[i])/2)
	}
	// Distance at which a sphere around the box fits the vertical field of view.
	radius := half * float32(math.Sqrt(3)) / float32(math.Sin(float64(c.fov)/2))
	c.radius = max(radius, c.near*2)
	c.far = max(c.far, c.radius+half*2)
	c.updateMatrices()
}

// updateMatrices recomputes the position from spherical coordinates, then the view,
// projection, view-projection matrices and the frustum.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.elevation = min(max(c.elevation, -maxElevation), maxElevation)

	cosElev := float32(math.Cos(float64(c.elevation)))
	sinElev := float32(math.Sin(float64(c.elevation)))
	cosAzim := float32(math.Cos(float64(c.azimuth)))
	sinAzim := float32(math.Sin(float64(c.azimuth)))

	c.position[0] = c.target[0] + c.radius*cosElev*sinAzim
	c.position[1] = c.target[1] + c.radius*sinElev
	c.position[2] = c.target[2] + c.radius*cosElev*cosAzim

	c.viewMatrix = common.LookAt(c.position, c.target, c.up)
	c.projectionMatrix = common.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProjectionMatrix = c.projectionMatrix.Mul(c.viewMatrix)
	c.frustum = common.ExtractFrustum(c.viewProjectionMatrix)
}
