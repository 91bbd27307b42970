package facedet_test

import (
	"testing"

	facedet "github.com/olajep/face-detect/core"
)

func roundUp8(x int) int { return (x + 7) &^ 7 }

// coverTasks replays the per-tile scan loop and counts how often each
// window position of the level would be tested.
func coverTasks(t *testing.T, tasks []facedet.Task, width, height, stride, window int) [][]int {
	t.Helper()
	counts := make([][]int, height-window+1)
	for y := range counts {
		counts[y] = make([]int, width-window+1)
	}
	for _, task := range tasks {
		tileX := task.Offset % stride
		tileY := task.Offset / stride
		processW := task.Width + 1 - window
		processH := task.Height + 1 - window
		for y := 0; y < processH; y++ {
			xStart, xStep := 0, 1
			if task.Scan != facedet.ScanFull {
				xStart, xStep = (y+int(task.Scan))&1, 2
			}
			for x := xStart; x < processW; x += xStep {
				gx, gy := tileX+x, tileY+y
				if gy >= len(counts) || gx >= len(counts[gy]) {
					t.Fatalf("tile at offset %d scans (%d,%d) outside the level", task.Offset, gx, gy)
				}
				counts[gy][gx]++
			}
		}
	}
	return counts
}

func TestPlanTilesRespectsBudgetAndAlignment(t *testing.T) {
	cases := []struct{ width, height int }{
		{640, 480}, {480, 640}, {200, 100}, {100, 200}, {64, 64}, {57, 212},
	}
	const window = 20
	for _, tc := range cases {
		stride := roundUp8(tc.width)
		tasks := facedet.PlanTiles(tc.width, tc.height, stride, window, window, 0, facedet.ScanFull)
		if len(tasks) == 0 {
			t.Errorf("%dx%d: no tasks planned", tc.width, tc.height)
			continue
		}
		for i, task := range tasks {
			if task.Stride != roundUp8(task.Width) {
				t.Errorf("%dx%d task %d: stride %d for width %d", tc.width, tc.height, i, task.Stride, task.Width)
			}
			if task.Area != task.Stride*task.Height {
				t.Errorf("%dx%d task %d: area %d, want %d", tc.width, tc.height, i, task.Area, task.Stride*task.Height)
			}
			if task.Area > facedet.MaxTileBytes {
				t.Errorf("%dx%d task %d: area %d exceeds the %d byte budget",
					tc.width, tc.height, i, task.Area, facedet.MaxTileBytes)
			}
			if tileX := task.Offset % stride; tileX%8 != 0 {
				t.Errorf("%dx%d task %d: tile starts at column %d, not 8-aligned", tc.width, tc.height, i, tileX)
			}
			if task.Width < window || task.Height < window {
				t.Errorf("%dx%d task %d: tile %dx%d is smaller than the window",
					tc.width, tc.height, i, task.Width, task.Height)
			}
		}
	}
}

func TestPlanTilesCoversEveryPositionOnce(t *testing.T) {
	cases := []struct{ width, height int }{
		{640, 480}, {200, 100}, {100, 200}, {64, 64},
	}
	const window = 20
	for _, tc := range cases {
		stride := roundUp8(tc.width)
		tasks := facedet.PlanTiles(tc.width, tc.height, stride, window, window, 0, facedet.ScanFull)
		counts := coverTasks(t, tasks, tc.width, tc.height, stride, window)
		for y := range counts {
			for x, n := range counts[y] {
				if n != 1 {
					t.Fatalf("%dx%d: position (%d,%d) scanned %d times, want once",
						tc.width, tc.height, x, y, n)
				}
			}
		}
	}
}

func TestPlanTilesCheckerboardParity(t *testing.T) {
	// Checkerboard tiles must continue one global pattern: with an even
	// scan, position (x,y) is tested exactly when x+y is even, no matter
	// which tile it lands in. Even and odd scans partition the full set.
	const window = 20
	width, height := 200, 160
	stride := roundUp8(width)

	for _, scan := range []facedet.ScanMode{facedet.ScanEven, facedet.ScanOdd} {
		tasks := facedet.PlanTiles(width, height, stride, window, window, 0, scan)
		counts := coverTasks(t, tasks, width, height, stride, window)
		for y := range counts {
			for x, n := range counts[y] {
				want := 0
				if (x+y+int(scan))&1 == 0 {
					want = 1
				}
				if n != want {
					t.Fatalf("scan %v: position (%d,%d) scanned %d times, want %d", scan, x, y, n, want)
				}
			}
		}
	}
}

func TestPlanTilesPropagatesLevelIndex(t *testing.T) {
	tasks := facedet.PlanTiles(100, 100, 104, 20, 20, 9, facedet.ScanFull)
	for i, task := range tasks {
		if task.Level != 9 {
			t.Fatalf("task %d carries level %d, want 9", i, task.Level)
		}
		if task.Scan != facedet.ScanFull {
			t.Fatalf("task %d carries scan %v, want full", i, task.Scan)
		}
	}
}

func TestScanModeString(t *testing.T) {
	if facedet.ScanEven.String() != "even" || facedet.ScanOdd.String() != "odd" || facedet.ScanFull.String() != "full" {
		t.Fatal("scan mode names changed")
	}
}
