package facedet_test

import (
	"testing"

	facedet "github.com/olajep/face-detect/core"
)

func TestClusterRectsMergesOverlaps(t *testing.T) {
	rects := []facedet.Rect{
		{X: 10, Y: 10, Width: 20, Height: 20},
		{X: 12, Y: 10, Width: 20, Height: 20},
		{X: 10, Y: 12, Width: 20, Height: 20},
		{X: 100, Y: 100, Width: 20, Height: 20},
	}
	clusters := facedet.ClusterRects(rects, 0.5, 1)
	if len(clusters) != 2 {
		t.Fatalf("%d clusters, want 2", len(clusters))
	}

	var merged, lone facedet.Rect
	if clusters[0].X < 50 {
		merged, lone = clusters[0], clusters[1]
	} else {
		merged, lone = clusters[1], clusters[0]
	}
	if merged.X != (10.0+12+10)/3 || merged.Y != (10.0+10+12)/3 {
		t.Fatalf("merged cluster at (%v,%v), want the member average", merged.X, merged.Y)
	}
	if lone != rects[3] {
		t.Fatalf("isolated rectangle came back as %+v", lone)
	}
}

func TestClusterRectsMinNeighborsFilter(t *testing.T) {
	rects := []facedet.Rect{
		{X: 10, Y: 10, Width: 20, Height: 20},
		{X: 11, Y: 10, Width: 20, Height: 20},
		{X: 100, Y: 100, Width: 20, Height: 20},
	}
	clusters := facedet.ClusterRects(rects, 0.5, 2)
	if len(clusters) != 1 {
		t.Fatalf("%d clusters with minNeighbors 2, want 1", len(clusters))
	}
	if clusters[0].X > 50 {
		t.Fatalf("the singleton survived the neighbor filter: %+v", clusters[0])
	}
}

func TestClusterRectsDisjointStaySeparate(t *testing.T) {
	rects := []facedet.Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 50, Y: 0, Width: 10, Height: 10},
		{X: 0, Y: 50, Width: 10, Height: 10},
	}
	clusters := facedet.ClusterRects(rects, 0.2, 1)
	if len(clusters) != 3 {
		t.Fatalf("%d clusters from disjoint rectangles, want 3", len(clusters))
	}
}

func TestClusterRectsEmptyInput(t *testing.T) {
	if got := facedet.ClusterRects(nil, 0.5, 1); len(got) != 0 {
		t.Fatalf("clustering nothing produced %d clusters", len(got))
	}
}
