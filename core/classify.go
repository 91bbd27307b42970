package facedet

// ge returns 1 when a is not less than b. Ties count as "greater", matching
// the sign-bit extraction in the reference decision procedure.
func ge(a, b int32) uint32 {
	if a >= b {
		return 1
	}
	return 0
}

// lbpDecision evaluates one LBP feature at base (the window origin inside
// pixels) and returns 0 or 1.
//
// The feature samples a 3x3 grid of blocks anchored at the node offset.
// Blocks are not summed exactly: a 1x1 block is read directly, a stretched
// axis is approximated by two edge samples at a quarter of the extent from
// either side, and a general block by the four combinations. The degraded
// sampling is a fixed accuracy/speed trade-off baked into trained
// classifiers, so it has to be reproduced bit for bit.
func lbpDecision(pixels []uint8, base, stride int, n *node) int32 {
	pos := base + n.dx + n.dy*stride

	var s00, s01, s02, s10, s11, s12, s20, s21, s22 int32
	w, h := n.blockW, n.blockH

	switch {
	case w == 1 && h == 1:
		r0, r1, r2 := pos, pos+stride, pos+2*stride
		s00, s01, s02 = int32(pixels[r0]), int32(pixels[r0+1]), int32(pixels[r0+2])
		s10, s11, s12 = int32(pixels[r1]), int32(pixels[r1+1]), int32(pixels[r1+2])
		s20, s21, s22 = int32(pixels[r2]), int32(pixels[r2+1]), int32(pixels[r2+2])

	case w == 1:
		// Two samples per block, vertically stretched.
		stepY := (h - 1) / 4
		r0 := pos + stepY*stride
		r1 := pos + (h-stepY-1)*stride
		r2, r3 := r0+h*stride, r1+h*stride
		r4, r5 := r2+h*stride, r3+h*stride
		s00 = int32(pixels[r0]) + int32(pixels[r1])
		s01 = int32(pixels[r0+1]) + int32(pixels[r1+1])
		s02 = int32(pixels[r0+2]) + int32(pixels[r1+2])
		s10 = int32(pixels[r2]) + int32(pixels[r3])
		s11 = int32(pixels[r2+1]) + int32(pixels[r3+1])
		s12 = int32(pixels[r2+2]) + int32(pixels[r3+2])
		s20 = int32(pixels[r4]) + int32(pixels[r5])
		s21 = int32(pixels[r4+1]) + int32(pixels[r5+1])
		s22 = int32(pixels[r4+2]) + int32(pixels[r5+2])

	default:
		stepX := (w - 1) / 4
		x1, x2 := stepX, w-stepX-1
		x3, x4 := x1+w, x2+w
		x5, x6 := x3+w, x4+w

		if h == 1 {
			// Two samples per block, horizontally stretched.
			r0, r1, r2 := pos, pos+stride, pos+2*stride
			s00 = int32(pixels[r0+x1]) + int32(pixels[r0+x2])
			s01 = int32(pixels[r0+x3]) + int32(pixels[r0+x4])
			s02 = int32(pixels[r0+x5]) + int32(pixels[r0+x6])
			s10 = int32(pixels[r1+x1]) + int32(pixels[r1+x2])
			s11 = int32(pixels[r1+x3]) + int32(pixels[r1+x4])
			s12 = int32(pixels[r1+x5]) + int32(pixels[r1+x6])
			s20 = int32(pixels[r2+x1]) + int32(pixels[r2+x2])
			s21 = int32(pixels[r2+x3]) + int32(pixels[r2+x4])
			s22 = int32(pixels[r2+x5]) + int32(pixels[r2+x6])
		} else {
			// Four samples per block.
			stepY := (h - 1) / 4
			r0 := pos + stepY*stride
			r1 := pos + (h-stepY-1)*stride
			r2, r3 := r0+h*stride, r1+h*stride
			r4, r5 := r2+h*stride, r3+h*stride

			s00 = int32(pixels[r0+x1]) + int32(pixels[r0+x2]) + int32(pixels[r1+x1]) + int32(pixels[r1+x2])
			s01 = int32(pixels[r0+x3]) + int32(pixels[r0+x4]) + int32(pixels[r1+x3]) + int32(pixels[r1+x4])
			s02 = int32(pixels[r0+x5]) + int32(pixels[r0+x6]) + int32(pixels[r1+x5]) + int32(pixels[r1+x6])

			s10 = int32(pixels[r2+x1]) + int32(pixels[r2+x2]) + int32(pixels[r3+x1]) + int32(pixels[r3+x2])
			s11 = int32(pixels[r2+x3]) + int32(pixels[r2+x4]) + int32(pixels[r3+x3]) + int32(pixels[r3+x4])
			s12 = int32(pixels[r2+x5]) + int32(pixels[r2+x6]) + int32(pixels[r3+x5]) + int32(pixels[r3+x6])

			s20 = int32(pixels[r4+x1]) + int32(pixels[r4+x2]) + int32(pixels[r5+x1]) + int32(pixels[r5+x2])
			s21 = int32(pixels[r4+x3]) + int32(pixels[r4+x4]) + int32(pixels[r5+x3]) + int32(pixels[r5+x4])
			s22 = int32(pixels[r4+x5]) + int32(pixels[r4+x6]) + int32(pixels[r5+x5]) + int32(pixels[r5+x6])
		}
	}

	// The eight neighbor-vs-center comparisons split into a 3-bit subset
	// index (top row) and a 5-bit bit index (the remaining neighbors).
	subset := ge(s00, s11)<<2 | ge(s01, s11)<<1 | ge(s02, s11)
	bit := ge(s12, s11)<<4 | ge(s22, s11)<<3 | ge(s21, s11)<<2 | ge(s20, s11)<<1 | ge(s10, s11)

	return int32(n.subsets[subset] >> bit & 1)
}

// classifyWindow runs the cascade interpreter over one window position.
// Decision nodes accumulate a masked score, stage nodes reject when the
// score misses the threshold, the final node accepts. Validation guarantees
// the stream starts with a decision node, never holds two stage nodes in a
// row and ends with a stage followed by the final node, so the loop always
// terminates through an explicit reject or accept.
func (c *Cascade) classifyWindow(pixels []uint8, base, stride int) bool {
	nodes := c.nodes
	score := nodes[0].score & -lbpDecision(pixels, base, stride, &nodes[0])
	for i := 1; ; i++ {
		n := &nodes[i]
		if n.kind == nodeDecision {
			score += n.score & -lbpDecision(pixels, base, stride, n)
			continue
		}
		// Stage node.
		if score < n.threshold {
			return false
		}
		if nodes[i+1].kind == nodeFinal {
			return true
		}
	}
}

// ClassifyWindow reports whether the window anchored at (x, y) in img is
// accepted by the cascade. The window must lie fully inside the image.
func (c *Cascade) ClassifyWindow(img *Image, x, y int) bool {
	return c.classifyWindow(img.Data, y*img.Stride+x, img.Stride)
}
