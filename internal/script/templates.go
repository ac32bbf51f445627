package script

import "cadbridge/internal/domain"

// Preamble identifiers shared by the built-in templates.
const (
	PreambleActiveSketch = "active_sketch"
)

func builtinPreambles() map[string]string {
	return map[string]string{
		PreambleActiveSketch: `# Ensure a sketch is active
if sketch is None:
    if component.sketches.count == 0:
        raise RuntimeError('No sketch available. Create a sketch first.')
    sketch = component.sketches.item(component.sketches.count - 1)`,
	}
}

// builtinTemplates emits Fusion 360 API script fragments for every
// registered tool. Slot names match the tool's parameter names; derived
// slots (plane_code, operation_code, ...) are filled in by deriveSlots.
func builtinTemplates() []Template {
	return []Template{
		{
			Tool: "get_scene_info",
			Body: `# Report scene information
ui.messageBox('Design: {} | bodies: {} | sketches: {}'.format(
    design.parentDocument.name,
    component.bRepBodies.count,
    component.sketches.count))`,
		},
		{
			Tool: "get_object_info",
			Body: `# Report object information
target = None
for i in range(component.bRepBodies.count):
    if component.bRepBodies.item(i).name == '{{.name}}':
        target = component.bRepBodies.item(i)
for i in range(component.sketches.count):
    if component.sketches.item(i).name == '{{.name}}':
        target = component.sketches.item(i)
if target is None:
    ui.messageBox('Object not found: {{.name}}')
else:
    ui.messageBox('Found object: {}'.format(target.name))`,
		},
		{
			Tool: "execute_code",
			Body: `# Execute custom code
{{.code}}`,
		},
		{
			Tool: "create_sketch",
			Body: `# Create a new sketch on the {{.plane}} plane
sketches = component.sketches
{{.plane_code}}
sketch = sketches.add({{.plane_var}})`,
		},
		{
			Tool:     "draw_rectangle",
			Requires: []string{PreambleActiveSketch},
			Body: `# Draw a rectangle
rectangle = sketch.sketchCurves.sketchLines.addTwoPointRectangle(
    adsk.core.Point3D.create({{.origin_x}}, {{.origin_y}}, {{.origin_z}}),
    adsk.core.Point3D.create({{.origin_x}} + {{.width}}, {{.origin_y}} + {{.height}}, {{.origin_z}}))`,
		},
		{
			Tool:     "draw_circle",
			Requires: []string{PreambleActiveSketch},
			Body: `# Draw a circle
circle = sketch.sketchCurves.sketchCircles.addByCenterRadius(
    adsk.core.Point3D.create({{.center_x}}, {{.center_y}}, {{.center_z}}),
    {{.radius}})`,
		},
		{
			Tool:     "draw_line",
			Requires: []string{PreambleActiveSketch},
			Body: `# Draw a line
line = sketch.sketchCurves.sketchLines.addByTwoPoints(
    adsk.core.Point3D.create({{.start_x}}, {{.start_y}}, {{.start_z}}),
    adsk.core.Point3D.create({{.end_x}}, {{.end_y}}, {{.end_z}}))`,
		},
		{
			Tool:     "extrude",
			Requires: []string{PreambleActiveSketch},
			Body: `# Extrude the profile
prof = sketch.profiles.item({{.profile_index}})
extrudes = component.features.extrudeFeatures
extInput = extrudes.createInput(prof, adsk.fusion.FeatureOperations.{{.operation_code}}FeatureOperation)
{{.direction_code}}
extrude = extrudes.add(extInput)`,
		},
		{
			Tool:     "revolve",
			Requires: []string{PreambleActiveSketch},
			Body: `# Revolve the profile
prof = sketch.profiles.item({{.profile_index}})
revolves = component.features.revolveFeatures
revInput = revolves.createInput(prof, adsk.fusion.FeatureOperations.{{.operation_code}}FeatureOperation)
axis = adsk.core.Line3D.create(
    adsk.core.Point3D.create({{.axis_origin_x}}, {{.axis_origin_y}}, {{.axis_origin_z}}),
    adsk.core.Vector3D.create({{.axis_direction_x}}, {{.axis_direction_y}}, {{.axis_direction_z}}))
revInput.setRevolutionExtent(False, adsk.core.ValueInput.createByString('{{.angle}} deg'))
revInput.revolutionAxis = axis
revolve = revolves.add(revInput)`,
		},
		{
			Tool: "fillet",
			Body: `# Fillet edges
fillets = component.features.filletFeatures
edgeCollection = adsk.core.ObjectCollection.create()
body = component.bRepBodies.item({{.body_index}})
{{.edge_loop}}
filletInput = fillets.createInput()
filletInput.addConstantRadiusEdgeSet(edgeCollection, adsk.core.ValueInput.createByReal({{.radius}}), True)
fillet = fillets.add(filletInput)`,
		},
		{
			Tool: "chamfer",
			Body: `# Chamfer edges
chamfers = component.features.chamferFeatures
edgeCollection = adsk.core.ObjectCollection.create()
body = component.bRepBodies.item({{.body_index}})
{{.edge_loop}}
chamferInput = chamfers.createInput(edgeCollection, True)
chamferInput.setToEqualDistance(adsk.core.ValueInput.createByReal({{.distance}}))
chamfer = chamfers.add(chamferInput)`,
		},
		{
			Tool: "shell",
			Body: `# Shell the body
shells = component.features.shellFeatures
body = component.bRepBodies.item({{.body_index}})
faceCollection = adsk.core.ObjectCollection.create()
{{.face_loop}}
bodyCollection = adsk.core.ObjectCollection.create()
bodyCollection.add(body)
shellInput = shells.createInput(bodyCollection)
shellInput.facesToRemove = faceCollection
shellInput.insideThickness = adsk.core.ValueInput.createByReal({{.thickness}})
shell = shells.add(shellInput)`,
		},
		{
			Tool: "mirror",
			Body: `# Mirror feature
mirrors = component.features.mirrorFeatures
body = component.bRepBodies.item({{.body_index}})
inputEntities = adsk.core.ObjectCollection.create()
inputEntities.add(body)
{{.mirror_plane_code}}
mirrorInput = mirrors.createInput(inputEntities, {{.mirror_plane_var}})
mirror = mirrors.add(mirrorInput)`,
		},
	}
}

// planeCode returns the setup statement and variable name for a
// construction plane choice.
func planeCode(plane string) (string, string) {
	switch plane {
	case domain.PlaneYZ:
		return "yzPlane = component.yZConstructionPlane", "yzPlane"
	case domain.PlaneXZ:
		return "xzPlane = component.xZConstructionPlane", "xzPlane"
	default:
		return "xyPlane = component.xYConstructionPlane", "xyPlane"
	}
}

func operationCode(operation string) string {
	switch operation {
	case domain.OpJoin:
		return "Join"
	case domain.OpCut:
		return "Cut"
	case domain.OpIntersect:
		return "Intersect"
	default:
		return "NewBody"
	}
}

func directionCode(direction string, height float64) string {
	switch direction {
	case domain.DirNegative:
		return "distance = adsk.core.ValueInput.createByReal(-" + formatNumber(height) + ")\n" +
			"extInput.setDistanceExtent(False, distance)"
	case domain.DirSymmetric:
		return "distance = adsk.core.ValueInput.createByReal(" + formatNumber(height/2) + ")\n" +
			"extInput.setSymmetricExtent(distance, True)"
	default:
		return "distance = adsk.core.ValueInput.createByReal(" + formatNumber(height) + ")\n" +
			"extInput.setDistanceExtent(False, distance)"
	}
}

func edgeLoop(selection string) string {
	switch selection {
	case "top":
		return `for edge in body.edges:
    if edge.boundingBox.maxPoint.z > (body.boundingBox.maxPoint.z - 0.001):
        edgeCollection.add(edge)`
	case "bottom":
		return `for edge in body.edges:
    if edge.boundingBox.minPoint.z < (body.boundingBox.minPoint.z + 0.001):
        edgeCollection.add(edge)`
	case "vertical":
		return `for edge in body.edges:
    if abs(edge.geometry.direction.z) < 0.1:
        edgeCollection.add(edge)`
	default:
		return `for edge in body.edges:
    edgeCollection.add(edge)`
	}
}

func faceLoop(selection string) string {
	cases := map[string]string{
		"top":    "face.boundingBox.maxPoint.z > (body.boundingBox.maxPoint.z - 0.001)",
		"bottom": "face.boundingBox.minPoint.z < (body.boundingBox.minPoint.z + 0.001)",
		"front":  "face.boundingBox.maxPoint.y > (body.boundingBox.maxPoint.y - 0.001)",
		"back":   "face.boundingBox.minPoint.y < (body.boundingBox.minPoint.y + 0.001)",
		"left":   "face.boundingBox.minPoint.x < (body.boundingBox.minPoint.x + 0.001)",
		"right":  "face.boundingBox.maxPoint.x > (body.boundingBox.maxPoint.x - 0.001)",
	}
	cond, ok := cases[selection]
	if !ok {
		cond = cases["top"]
	}
	return "for face in body.faces:\n    if " + cond + ":\n        faceCollection.add(face)"
}
