// Spawn placement: finds the safe surface cell the vehicle starts on and
// teleports back to.
package world

// SpawnPoint returns the surface cell nearest the horizontal center that
// rests directly on ground. The vehicle sits on the last sky row.
func SpawnPoint(v View) (x, y int) {
	y = v.SurfaceRows() - 1
	center := v.Width() / 2

	// Search outward from the center for a column with footing beneath.
	for offset := 0; offset <= v.Width(); offset++ {
		for _, cx := range []int{center - offset, center + offset} {
			if !v.InBounds(cx, y) || v.Solid(cx, y) {
				continue
			}
			if v.Solid(cx, y+1) {
				return cx, y
			}
		}
	}
	return center, y
}
