// Package document provides the in-memory design model the executor
// handlers operate on. It tracks sketches, profiles, bodies, and
// features with lightweight geometry bookkeeping: enough to answer
// introspection queries and verify command sequences, without claiming
// to be a kernel. The model is not safe for concurrent use; the
// executor serializes all access.
package document

import (
	"fmt"
	"math"

	"cadbridge/internal/domain"
)

// Design is one open document. It implements domain.Document.
type Design struct {
	name     string
	root     *component
	features int
}

type component struct {
	name     string
	sketches []*sketch
	bodies   []*body
}

type sketch struct {
	name     string
	plane    string
	curves   int
	profiles []profile
}

// profile is a closed region that can be extruded or revolved.
type profile struct {
	area float64
}

type body struct {
	name     string
	volume   float64
	area     float64
	visible  bool
	faces    int
	edges    int
	vertices int
}

// New creates an empty design with a root component.
func New(name string) *Design {
	return &Design{
		name: name,
		root: &component{name: "Root"},
	}
}

func (d *Design) Name() string { return d.name }

// SceneInfo summarizes the design state.
func (d *Design) SceneInfo() domain.SceneInfo {
	info := domain.SceneInfo{
		DesignName:    d.name,
		ComponentName: d.root.name,
		BodiesCount:   len(d.root.bodies),
		SketchesCount: len(d.root.sketches),
		FeaturesCount: d.features,
		TimelineCount: d.features + len(d.root.sketches),
		Bodies:        make([]domain.BodyInfo, 0, len(d.root.bodies)),
	}
	for _, b := range d.root.bodies {
		info.Bodies = append(info.Bodies, domain.BodyInfo{
			Name:      b.name,
			Volume:    b.volume,
			Area:      b.area,
			IsVisible: b.visible,
		})
	}
	return info
}

// ObjectInfo looks a body or sketch up by name.
func (d *Design) ObjectInfo(name string) (domain.ObjectInfo, bool) {
	for _, b := range d.root.bodies {
		if b.name == name {
			return domain.ObjectInfo{
				Name:          b.name,
				Type:          "body",
				Volume:        b.volume,
				Area:          b.area,
				IsVisible:     b.visible,
				FacesCount:    b.faces,
				EdgesCount:    b.edges,
				VerticesCount: b.vertices,
			}, true
		}
	}
	for _, s := range d.root.sketches {
		if s.name == name {
			return domain.ObjectInfo{
				Name:         s.name,
				Type:         "sketch",
				IsVisible:    true,
				ProfileCount: len(s.profiles),
				CurveCount:   s.curves,
				Plane:        s.plane,
			}, true
		}
	}
	return domain.ObjectInfo{}, false
}

// CreateSketch opens a new sketch on a construction plane and makes it
// the active sketch.
func (d *Design) CreateSketch(plane string) (string, error) {
	s := &sketch{
		name:  fmt.Sprintf("Sketch%d", len(d.root.sketches)+1),
		plane: plane,
	}
	d.root.sketches = append(d.root.sketches, s)
	return s.name, nil
}

// activeSketch returns the most recently created sketch, mirroring the
// host application's notion of the sketch being edited.
func (d *Design) activeSketch() (*sketch, error) {
	if len(d.root.sketches) == 0 {
		return nil, fmt.Errorf("no sketch available, create a sketch first")
	}
	return d.root.sketches[len(d.root.sketches)-1], nil
}

func (d *Design) DrawRectangle(width, height, originX, originY, originZ float64) (string, error) {
	s, err := d.activeSketch()
	if err != nil {
		return "", err
	}
	s.curves += 4
	s.profiles = append(s.profiles, profile{area: width * height})
	return s.name, nil
}

func (d *Design) DrawCircle(radius, centerX, centerY, centerZ float64) (string, error) {
	s, err := d.activeSketch()
	if err != nil {
		return "", err
	}
	s.curves++
	s.profiles = append(s.profiles, profile{area: math.Pi * radius * radius})
	return s.name, nil
}

func (d *Design) DrawLine(startX, startY, startZ, endX, endY, endZ float64) (string, error) {
	s, err := d.activeSketch()
	if err != nil {
		return "", err
	}
	// An open curve adds no profile.
	s.curves++
	return s.name, nil
}

// Extrude turns a sketch profile into a solid body (or modifies the
// last body for join/cut/intersect operations).
func (d *Design) Extrude(height float64, profileIndex int, operation, direction string) (string, error) {
	s, err := d.activeSketch()
	if err != nil {
		return "", err
	}
	p, err := profileAt(s, profileIndex)
	if err != nil {
		return "", err
	}
	volume := p.area * height
	return d.applyVolume(operation, volume, p.area, s.curves)
}

// Revolve sweeps a profile around an axis. The volume estimate uses the
// swept fraction of a full revolution.
func (d *Design) Revolve(angle float64, profileIndex int, operation string) (string, error) {
	s, err := d.activeSketch()
	if err != nil {
		return "", err
	}
	p, err := profileAt(s, profileIndex)
	if err != nil {
		return "", err
	}
	volume := p.area * math.Pi * angle / 180
	return d.applyVolume(operation, volume, p.area, s.curves)
}

func profileAt(s *sketch, index int) (profile, error) {
	if len(s.profiles) == 0 {
		return profile{}, fmt.Errorf("no profiles found in sketch %s", s.name)
	}
	if index < 0 || index >= len(s.profiles) {
		return profile{}, fmt.Errorf("profile index %d out of range (sketch %s has %d)", index, s.name, len(s.profiles))
	}
	return s.profiles[index], nil
}

// applyVolume creates a body or folds the new volume into the last one
// according to the feature operation.
func (d *Design) applyVolume(operation string, volume, area float64, curves int) (string, error) {
	d.features++
	if operation == domain.OpNewBody || len(d.root.bodies) == 0 {
		b := &body{
			name:    fmt.Sprintf("Body%d", len(d.root.bodies)+1),
			volume:  volume,
			area:    2*area + volume, // crude lateral surface estimate
			visible: true,
			// A prism over a profile with n boundary curves.
			faces:    curves + 2,
			edges:    curves * 3,
			vertices: curves * 2,
		}
		d.root.bodies = append(d.root.bodies, b)
		return b.name, nil
	}

	target := d.root.bodies[len(d.root.bodies)-1]
	switch operation {
	case domain.OpJoin:
		target.volume += volume
	case domain.OpCut:
		target.volume = math.Max(0, target.volume-volume)
	case domain.OpIntersect:
		target.volume = math.Min(target.volume, volume)
	}
	return target.name, nil
}

func (d *Design) bodyAt(index int) (*body, error) {
	if len(d.root.bodies) == 0 {
		return nil, fmt.Errorf("no bodies available")
	}
	if index < 0 || index >= len(d.root.bodies) {
		return nil, fmt.Errorf("body index %d out of range (%d bodies)", index, len(d.root.bodies))
	}
	return d.root.bodies[index], nil
}

// selectedEdges approximates how many edges a selection picks.
func selectedEdges(b *body, selection string) int {
	if selection == "all" {
		return b.edges
	}
	n := b.edges / 3
	if n < 1 {
		n = 1
	}
	return n
}

func (d *Design) Fillet(radius float64, bodyIndex int, edgeSelection string) (string, int, error) {
	b, err := d.bodyAt(bodyIndex)
	if err != nil {
		return "", 0, err
	}
	d.features++
	return fmt.Sprintf("Fillet%d", d.features), selectedEdges(b, edgeSelection), nil
}

func (d *Design) Chamfer(distance float64, bodyIndex int, edgeSelection string) (string, int, error) {
	b, err := d.bodyAt(bodyIndex)
	if err != nil {
		return "", 0, err
	}
	d.features++
	return fmt.Sprintf("Chamfer%d", d.features), selectedEdges(b, edgeSelection), nil
}

// Shell hollows a body, removing one face and leaving walls of the
// given thickness.
func (d *Design) Shell(thickness float64, bodyIndex int, faceSelection string) (string, int, error) {
	b, err := d.bodyAt(bodyIndex)
	if err != nil {
		return "", 0, err
	}
	removed := thickness * b.area
	if removed > b.volume*0.9 {
		removed = b.volume * 0.9
	}
	b.volume -= removed
	d.features++
	return fmt.Sprintf("Shell%d", d.features), 1, nil
}

// Mirror duplicates a body across a construction plane.
func (d *Design) Mirror(mirrorPlane string, bodyIndex int) (string, error) {
	b, err := d.bodyAt(bodyIndex)
	if err != nil {
		return "", err
	}
	d.features++
	mirrored := &body{
		name:     fmt.Sprintf("Body%d", len(d.root.bodies)+1),
		volume:   b.volume,
		area:     b.area,
		visible:  true,
		faces:    b.faces,
		edges:    b.edges,
		vertices: b.vertices,
	}
	d.root.bodies = append(d.root.bodies, mirrored)
	return mirrored.name, nil
}

var _ domain.Document = (*Design)(nil)
