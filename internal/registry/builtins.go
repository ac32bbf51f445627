package registry

import "cadbridge/internal/domain"

func fptr(v float64) *float64 { return &v }

var (
	planeEnum     = []string{domain.PlaneXY, domain.PlaneYZ, domain.PlaneXZ}
	operationEnum = []string{domain.OpNewBody, domain.OpJoin, domain.OpCut, domain.OpIntersect}
	directionEnum = []string{domain.DirPositive, domain.DirNegative, domain.DirSymmetric}
	edgeEnum      = []string{"all", "top", "bottom", "vertical"}
	faceEnum      = []string{"top", "bottom", "front", "back", "left", "right"}
)

// builtinTools declares the full CAD command surface. Dimensions are in mm.
func builtinTools() []*Tool {
	return []*Tool{
		{
			Name:        "get_scene_info",
			Title:       "Get Scene Info",
			Description: "Get detailed information about the current design",
			Params:      map[string]Param{},
		},
		{
			Name:        "get_object_info",
			Title:       "Get Object Info",
			Description: "Get detailed information about a specific object in the design",
			Params: map[string]Param{
				"name": {Type: TypeString, Required: true, Description: "The name of the object to get information about"},
			},
		},
		{
			Name:        "execute_code",
			Title:       "Execute Code",
			Description: "Execute arbitrary script code in the host application for debugging and advanced operations",
			Params: map[string]Param{
				"code": {Type: TypeString, Required: true, Description: "Script code to execute in the host application context"},
			},
		},
		{
			Name:        "create_sketch",
			Title:       "Create Sketch",
			Description: "Creates a new sketch on a specified construction plane",
			Params: map[string]Param{
				"plane": {Type: TypeString, Required: true, Enum: planeEnum, Description: "The plane to create the sketch on"},
			},
		},
		{
			Name:        "draw_rectangle",
			Title:       "Draw Rectangle",
			Description: "Draws a rectangle in the active sketch",
			Params: map[string]Param{
				"width":    {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Width of the rectangle in mm"},
				"height":   {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Height of the rectangle in mm"},
				"origin_x": {Type: TypeNumber, Default: 0.0, Description: "X coordinate of the origin point"},
				"origin_y": {Type: TypeNumber, Default: 0.0, Description: "Y coordinate of the origin point"},
				"origin_z": {Type: TypeNumber, Default: 0.0, Description: "Z coordinate of the origin point"},
			},
		},
		{
			Name:        "draw_circle",
			Title:       "Draw Circle",
			Description: "Draws a circle in the active sketch",
			Params: map[string]Param{
				"radius":   {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Radius of the circle in mm"},
				"center_x": {Type: TypeNumber, Default: 0.0, Description: "X coordinate of the center point"},
				"center_y": {Type: TypeNumber, Default: 0.0, Description: "Y coordinate of the center point"},
				"center_z": {Type: TypeNumber, Default: 0.0, Description: "Z coordinate of the center point"},
			},
		},
		{
			Name:        "draw_line",
			Title:       "Draw Line",
			Description: "Draws a line in the active sketch",
			Params: map[string]Param{
				"start_x": {Type: TypeNumber, Required: true, Description: "X coordinate of the start point"},
				"start_y": {Type: TypeNumber, Required: true, Description: "Y coordinate of the start point"},
				"start_z": {Type: TypeNumber, Default: 0.0, Description: "Z coordinate of the start point"},
				"end_x":   {Type: TypeNumber, Required: true, Description: "X coordinate of the end point"},
				"end_y":   {Type: TypeNumber, Required: true, Description: "Y coordinate of the end point"},
				"end_z":   {Type: TypeNumber, Default: 0.0, Description: "Z coordinate of the end point"},
			},
		},
		{
			Name:        "extrude",
			Title:       "Extrude",
			Description: "Extrudes a profile from a sketch",
			Params: map[string]Param{
				"height":        {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Extrusion height in mm"},
				"profile_index": {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the profile to extrude (0-based)"},
				"operation":     {Type: TypeString, Default: domain.OpNewBody, Enum: operationEnum, Description: "Type of extrusion operation"},
				"direction":     {Type: TypeString, Default: domain.DirPositive, Enum: directionEnum, Description: "Direction of extrusion"},
			},
		},
		{
			Name:        "revolve",
			Title:       "Revolve",
			Description: "Revolves a profile around an axis",
			Params: map[string]Param{
				"angle":            {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Maximum: fptr(360), Description: "Angle of revolution in degrees"},
				"profile_index":    {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the profile to revolve (0-based)"},
				"axis_origin_x":    {Type: TypeNumber, Default: 0.0, Description: "X coordinate of the axis origin"},
				"axis_origin_y":    {Type: TypeNumber, Default: 0.0, Description: "Y coordinate of the axis origin"},
				"axis_origin_z":    {Type: TypeNumber, Default: 0.0, Description: "Z coordinate of the axis origin"},
				"axis_direction_x": {Type: TypeNumber, Default: 1.0, Description: "X component of the axis direction"},
				"axis_direction_y": {Type: TypeNumber, Default: 0.0, Description: "Y component of the axis direction"},
				"axis_direction_z": {Type: TypeNumber, Default: 0.0, Description: "Z component of the axis direction"},
				"operation":        {Type: TypeString, Default: domain.OpNewBody, Enum: operationEnum, Description: "Type of revolve operation"},
			},
		},
		{
			Name:        "fillet",
			Title:       "Fillet Edges",
			Description: "Creates a fillet on selected edges",
			Params: map[string]Param{
				"radius":         {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Fillet radius in mm"},
				"body_index":     {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the body to fillet (0-based)"},
				"edge_selection": {Type: TypeString, Default: "all", Enum: edgeEnum, Description: "Which edges to fillet"},
			},
		},
		{
			Name:        "chamfer",
			Title:       "Chamfer Edges",
			Description: "Creates a chamfer on selected edges",
			Params: map[string]Param{
				"distance":       {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Chamfer distance in mm"},
				"body_index":     {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the body to chamfer (0-based)"},
				"edge_selection": {Type: TypeString, Default: "all", Enum: edgeEnum, Description: "Which edges to chamfer"},
			},
		},
		{
			Name:        "shell",
			Title:       "Shell Body",
			Description: "Creates a hollow shell from a solid body",
			Params: map[string]Param{
				"thickness":      {Type: TypeNumber, Required: true, Minimum: fptr(0.1), Description: "Wall thickness in mm"},
				"body_index":     {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the body to shell (0-based)"},
				"face_selection": {Type: TypeString, Default: "top", Enum: faceEnum, Description: "Which face to remove for the shell"},
			},
		},
		{
			Name:        "mirror",
			Title:       "Mirror Feature",
			Description: "Creates a mirror of a body across a plane",
			Params: map[string]Param{
				"mirror_plane": {Type: TypeString, Required: true, Enum: planeEnum, Description: "The plane to mirror across"},
				"body_index":   {Type: TypeInteger, Default: 0, Minimum: fptr(0), Description: "Index of the body to mirror (0-based)"},
			},
		},
	}
}
