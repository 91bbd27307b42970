package facedet

// ClusterRects merges overlapping detections: rectangles whose intersection
// over union exceeds iouThreshold are averaged into one. Clusters backed by
// fewer than minNeighbors members are dropped; minNeighbors <= 1 keeps
// every cluster.
func ClusterRects(rects []Rect, iouThreshold float64, minNeighbors int) []Rect {
	calcIoU := func(a, b Rect) float64 {
		overX := minf(a.X+a.Width, b.X+b.Width) - maxf(a.X, b.X)
		overY := minf(a.Y+a.Height, b.Y+b.Height) - maxf(a.Y, b.Y)
		if overX <= 0 || overY <= 0 {
			return 0
		}
		inter := overX * overY
		return inter / (a.Width*a.Height + b.Width*b.Height - inter)
	}

	assigned := make([]bool, len(rects))
	clusters := []Rect{}

	for i := range rects {
		if assigned[i] {
			continue
		}
		var sum Rect
		n := 0
		for j := range rects {
			if calcIoU(rects[i], rects[j]) > iouThreshold {
				assigned[j] = true
				sum.X += rects[j].X
				sum.Y += rects[j].Y
				sum.Width += rects[j].Width
				sum.Height += rects[j].Height
				n++
			}
		}
		if n < minNeighbors {
			continue
		}
		fn := float64(n)
		clusters = append(clusters, Rect{
			X: sum.X / fn, Y: sum.Y / fn,
			Width: sum.Width / fn, Height: sum.Height / fn,
		})
	}
	return clusters
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
