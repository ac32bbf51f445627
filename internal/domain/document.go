package domain

// Enumerated parameter values shared by the script templates and the live
// handlers. Validation guarantees only these values reach either path.
const (
	PlaneXY = "xy"
	PlaneYZ = "yz"
	PlaneXZ = "xz"
)

const (
	OpNewBody   = "new_body"
	OpJoin      = "join"
	OpCut       = "cut"
	OpIntersect = "intersect"
)

const (
	DirPositive  = "positive"
	DirNegative  = "negative"
	DirSymmetric = "symmetric"
)

// Document is the live design capability handed to executor handlers.
// It is passed explicitly rather than looked up through process-global
// state so handlers are testable with a substitute implementation.
//
// Implementations are not required to be safe for concurrent use; the
// executor serializes all access.
type Document interface {
	Name() string
	SceneInfo() SceneInfo
	ObjectInfo(name string) (ObjectInfo, bool)

	CreateSketch(plane string) (string, error)
	DrawRectangle(width, height, originX, originY, originZ float64) (string, error)
	DrawCircle(radius, centerX, centerY, centerZ float64) (string, error)
	DrawLine(startX, startY, startZ, endX, endY, endZ float64) (string, error)

	Extrude(height float64, profileIndex int, operation, direction string) (string, error)
	Revolve(angle float64, profileIndex int, operation string) (string, error)
	Fillet(radius float64, bodyIndex int, edgeSelection string) (string, int, error)
	Chamfer(distance float64, bodyIndex int, edgeSelection string) (string, int, error)
	Shell(thickness float64, bodyIndex int, faceSelection string) (string, int, error)
	Mirror(mirrorPlane string, bodyIndex int) (string, error)
}

// SceneInfo summarizes the current design for get_scene_info.
type SceneInfo struct {
	DesignName    string     `json:"design_name"`
	ComponentName string     `json:"component_name"`
	BodiesCount   int        `json:"bodies_count"`
	SketchesCount int        `json:"sketches_count"`
	FeaturesCount int        `json:"features_count"`
	TimelineCount int        `json:"timeline_count"`
	Bodies        []BodyInfo `json:"bodies"`
}

// BodyInfo describes one solid body in the design.
type BodyInfo struct {
	Name      string  `json:"name"`
	Volume    float64 `json:"volume"`
	Area      float64 `json:"area"`
	IsVisible bool    `json:"is_visible"`
}

// ObjectInfo is the get_object_info result for a named body or sketch.
type ObjectInfo struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"` // "body" | "sketch"
	Volume        float64 `json:"volume"`
	Area          float64 `json:"area"`
	IsVisible     bool    `json:"is_visible"`
	FacesCount    int     `json:"faces_count,omitempty"`
	EdgesCount    int     `json:"edges_count,omitempty"`
	VerticesCount int     `json:"vertices_count,omitempty"`
	ProfileCount  int     `json:"profile_count,omitempty"`
	CurveCount    int     `json:"curve_count,omitempty"`
	Plane         string  `json:"plane,omitempty"`
}
