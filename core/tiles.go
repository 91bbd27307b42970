package facedet

import "fmt"

// Fixed build parameters of the task tiling. MaxTileBytes is the per-task
// pixel budget of a device core's local buffer; RecommendedTileSize steers
// how many tiles the primary axis is cut into.
const (
	MaxTileBytes         = 16384
	RecommendedTileSize  = 64
	MaxDetectionsPerTile = 64
)

// ScanMode selects which window positions are tested. The even and odd
// modes form complementary halves of a global checkerboard; together they
// cover exactly the positions of a full scan. The numeric values of
// ScanEven and ScanOdd take part in the parity arithmetic and must stay
// 0 and 1.
type ScanMode int

const (
	ScanEven ScanMode = iota
	ScanOdd
	ScanFull
)

func (m ScanMode) String() string {
	switch m {
	case ScanEven:
		return "even"
	case ScanOdd:
		return "odd"
	case ScanFull:
		return "full"
	}
	return fmt.Sprintf("ScanMode(%d)", int(m))
}

// Task is a bounded rectangular tile of one pyramid level, sized so an
// independent execution unit can process it within MaxTileBytes of pixel
// buffer. Detections come back as packed 16-bit tile-local coordinates.
type Task struct {
	Offset  int // byte offset of the tile origin inside the level buffer
	Width   int
	Height  int
	Stride  int // roundUp8(Width), the tile's own row stride on the device
	Area    int // Stride * Height
	Scan    ScanMode
	Level   int // pyramid level index
	Count   int
	Objects [MaxDetectionsPerTile]uint32 // y<<16 | x, tile-local
}

// PlanTiles partitions one pyramid level into tasks. width/height/stride
// describe the level, windowWidth/windowHeight the classifier window.
//
// The level's scan area (dimensions reduced by window-1 of overlap) is cut
// along the smaller raw dimension first to limit fragmentation. The primary
// axis gets a nearest-integer count of recommended-size tiles, the
// secondary axis whatever extent still fits the byte budget. Tile bounds
// are evenly divided with nearest-integer boundaries; horizontal starts
// snap to the 8-pixel grid and the last column stretches to the image edge
// so no scan position is lost. Checkerboard tiles get their parity adjusted
// by the tile origin so adjacent tiles continue one global pattern.
func PlanTiles(width, height, stride, windowWidth, windowHeight, level int, scan ScanMode) []Task {
	overlapW, overlapH := windowWidth-1, windowHeight-1
	imageW, imageH := width-overlapW, height-overlapH

	var tilesHor, tilesVer int
	if imageH < imageW {
		tilesVer = divRound(imageH, RecommendedTileSize-overlapH)
		if tilesVer == 0 {
			tilesVer = 1
		}
		// Tiles will be maxTileHeight tall, sometimes one pixel less.
		maxTileHeight := divUp(imageH+overlapH*tilesVer, tilesVer)
		// Largest 8-aligned tile stride that respects the byte budget.
		maxTileStep := roundDown8(roundDown8(MaxTileBytes/maxTileHeight)-overlapW) + overlapW
		tilesHor = divUp(imageW, maxTileStep-overlapW)
	} else {
		tilesHor = divRound(imageW, RecommendedTileSize-overlapW)
		if tilesHor == 0 {
			tilesHor = 1
		}
		maxTileStep := roundUp8(roundUp8(divUp(imageW+overlapW*tilesHor, tilesHor)-overlapW) + overlapW)
		tileHeight := MaxTileBytes / maxTileStep
		tilesVer = divUp(imageH, tileHeight-overlapH)
	}

	tasks := make([]Task, 0, tilesHor*tilesVer)
	for tileIndex := 0; tileIndex < tilesHor*tilesVer; tileIndex++ {
		tileY := tileIndex / tilesHor
		y1 := divRound(imageH*tileY, tilesVer)
		y2 := divRound(imageH*(tileY+1), tilesVer) + overlapH

		tileX := tileIndex % tilesHor
		x1 := roundTo8(divRound(imageW*tileX, tilesHor))
		var x2 int
		if tileX+1 == tilesHor {
			x2 = imageW + overlapW
		} else {
			x2 = roundTo8(divRound(imageW*(tileX+1), tilesHor)) + overlapW
		}

		tileW := x2 - x1
		tileStride := roundUp8(tileW)

		mode := scan
		if scan != ScanFull {
			mode = ScanMode((x1 + y1 + int(scan)) & 1)
		}

		tasks = append(tasks, Task{
			Offset: x1 + y1*stride,
			Width:  tileW,
			Height: y2 - y1,
			Stride: tileStride,
			Area:   tileStride * (y2 - y1),
			Scan:   mode,
			Level:  level,
		})
	}
	return tasks
}
