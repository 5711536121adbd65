package force

// applyCenter pulls free nodes toward the layout center.
func applyCenter(in *Input) {
	k := in.Params.CenterStrength * in.Alpha
	if k == 0 {
		return
	}
	cx, cy := in.Params.CenterX, in.Params.CenterY
	for i := range in.Nodes {
		n := &in.Nodes[i]
		if n.Pinned() {
			continue
		}
		n.VX += (cx - n.X) * k
		n.VY += (cy - n.Y) * k
	}
}
