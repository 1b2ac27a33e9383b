package ports

import "serafin/internal/domain/observation"

// CameraCatalog exposes the static camera list. Implementations may reload
// the backing file but must hand out consistent snapshots.
type CameraCatalog interface {
	Cameras() []observation.Camera
	Camera(id int) (observation.Camera, bool)
}
