package geometry

import (
	"math"

	"whiteboard-backend/internal/scene"
)

// GroupGlobalPosition converts an element's group-local position into true
// canvas coordinates, un-rotating and un-scaling relative to the group
// transform. The group's Left/Top is its center.
func GroupGlobalPosition(group *scene.Object, localLeft, localTop float64) (globalLeft, globalTop float64) {
	theta := group.Angle * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)

	sx, sy := group.ScaleX, group.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}

	rotatedLeft := -sin*localTop*sy + cos*localLeft*sx
	rotatedTop := cos*localTop*sy + sin*localLeft*sx

	return group.Left + rotatedLeft, group.Top + rotatedTop
}

// ApplyGroupTransform rewrites a group member in place so its position, angle
// and scale are expressed in canvas space. Called before a grouped element's
// delta leaves the client, so peers never see group-local coordinates.
func ApplyGroupTransform(group *scene.Object, member *scene.Object) {
	gx, gy := GroupGlobalPosition(group, member.Left, member.Top)
	member.Left = gx
	member.Top = gy
	member.Angle += group.Angle
	if group.ScaleX != 0 {
		member.ScaleX *= group.ScaleX
	}
	if group.ScaleY != 0 {
		member.ScaleY *= group.ScaleY
	}
}
