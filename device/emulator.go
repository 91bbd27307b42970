package device

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	facedet "github.com/olajep/face-detect/core"
)

// Emulator implements Transport over an in-memory shared region and runs
// the coprocessor side of the protocol with one goroutine per core. Each
// core claims tasks from the shared list, copies its tile into a private
// buffer the way the firmware DMAs into local memory, scans it with the
// cascade interpreter and writes packed detections and its timer back into
// the region. It is the default device on machines without the hardware
// and the reference implementation of the coprocessor contract.
type Emulator struct {
	mu     sync.Mutex
	region []byte
	cores  int
	wg     sync.WaitGroup
}

// NewEmulator creates an emulator with the given core count, capped at
// MaxCores; 0 means MaxCores.
func NewEmulator(cores int) *Emulator {
	if cores <= 0 || cores > MaxCores {
		cores = MaxCores
	}
	return &Emulator{
		region: make([]byte, RegionSize),
		cores:  cores,
	}
}

// ReadAt copies from the shared region.
func (e *Emulator) ReadAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off < 0 || off >= int64(len(e.region)) {
		return 0, fmt.Errorf("region read at %#x out of range", off)
	}
	n := copy(p, e.region[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// WriteAt copies into the shared region.
func (e *Emulator) WriteAt(p []byte, off int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if off < 0 || off >= int64(len(e.region)) {
		return 0, fmt.Errorf("region write at %#x out of range", off)
	}
	n := copy(e.region[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Start parses the uploaded region and launches the cores. It returns
// immediately; the host observes completion through the control block.
func (e *Emulator) Start() error {
	e.mu.Lock()
	var control controlBlock
	control.unmarshal(e.region[controlOffset:])
	control.Start = 1
	control.marshal(e.region[controlOffset:])

	// Seed the timer slots so the host sees valid core IDs even when it
	// reads them before a core flushes its final busy time.
	for core := 0; core < MaxCores; core++ {
		timer := coreTimer{CoreID: uint32(core)}
		timer.marshal(e.region[timersOffset+core*timerSize:])
	}

	cascade, _, err := facedet.UnpackCascadeStream(
		e.region[classifierOffset : classifierOffset+classifierCapacity])
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("emulator: bad classifier upload: %w", err)
	}

	cores := int(control.ActiveCores)
	if cores <= 0 || cores > e.cores {
		cores = e.cores
	}

	var nextTask atomic.Int64
	for core := 0; core < cores; core++ {
		e.wg.Add(1)
		go func(coreID int) {
			defer e.wg.Done()
			var busy time.Duration
			for {
				i := int(nextTask.Add(1)) - 1
				if i >= int(control.TaskCount) {
					break
				}
				start := time.Now()
				e.runTask(i, cascade)
				busy += time.Since(start)
			}
			timer := coreTimer{CoreID: uint32(coreID), Value: uint32(busy.Microseconds())}
			e.mu.Lock()
			timer.marshal(e.region[timersOffset+coreID*timerSize:])
			e.mu.Unlock()
		}(core)
	}
	return nil
}

// runTask scans one tile and publishes its results.
func (e *Emulator) runTask(index int, cascade *facedet.Cascade) {
	// Snapshot the task, its level descriptor and the tile pixels.
	e.mu.Lock()
	var task facedet.Task
	unmarshalTask(&task, e.region[tasksOffset+index*taskWireSize:])

	var desc levelDesc
	desc.unmarshal(e.region[descsOffset+task.Level*levelDescSize:])

	tile := facedet.Image{
		Data:   make([]uint8, task.Stride*task.Height),
		Width:  task.Width,
		Height: task.Height,
		Stride: task.Stride,
	}
	levelData := e.region[pixelsOffset+int(desc.DataOffset):]
	for y := 0; y < task.Height; y++ {
		src := levelData[task.Offset+y*int(desc.Stride):]
		copy(tile.Data[y*task.Stride:y*task.Stride+task.Width], src[:task.Width])
	}
	e.mu.Unlock()

	processW := task.Width + 1 - cascade.WindowWidth()
	processH := task.Height + 1 - cascade.WindowHeight()

	task.Count = 0
	for y := 0; y < processH; y++ {
		xStart, xStep := 0, 1
		if task.Scan != facedet.ScanFull {
			xStart, xStep = (y+int(task.Scan))&1, 2
		}
		for x := xStart; x < processW; x += xStep {
			if !cascade.ClassifyWindow(&tile, x, y) {
				continue
			}
			if task.Count < facedet.MaxDetectionsPerTile {
				task.Objects[task.Count] = uint32(y)<<16 | uint32(x)
				task.Count++
			}
		}
	}

	// Publish results and bump the completion counter.
	e.mu.Lock()
	marshalTask(&task, e.region[tasksOffset+index*taskWireSize:])
	var control controlBlock
	control.unmarshal(e.region[controlOffset:])
	control.TasksDone++
	control.marshal(e.region[controlOffset:])
	e.mu.Unlock()
}

// Close waits for any running cores to drain.
func (e *Emulator) Close() error {
	e.wg.Wait()
	return nil
}
