package device

import (
	"encoding/binary"

	facedet "github.com/olajep/face-detect/core"
)

// Shared-region capacities. These mirror the memory map compiled into the
// device firmware, so they are fixed for a given build.
const (
	MaxCores           = 16
	maxLevels          = 64
	pyramidCapacity    = 8 << 20
	classifierCapacity = 64 << 10
	maxTasks           = 8192
)

// Wire sizes. Every field is a little-endian 32-bit value.
const (
	levelDescSize = 16
	taskWireSize  = (8 + facedet.MaxDetectionsPerTile) * 4
	controlSize   = 20
	timerSize     = 8
)

// Region offsets, in dependency order: pyramid pixels, level descriptors,
// classifier blob, task array, control block, per-core timers.
const (
	pixelsOffset     = 0
	descsOffset      = pixelsOffset + pyramidCapacity
	classifierOffset = descsOffset + maxLevels*levelDescSize
	tasksOffset      = classifierOffset + classifierCapacity
	controlOffset    = tasksOffset + maxTasks*taskWireSize
	timersOffset     = controlOffset + controlSize
	RegionSize       = timersOffset + MaxCores*timerSize
)

// levelDesc locates one pyramid level inside the packed pixel area and
// translates tile-local coordinates back to level-absolute ones.
type levelDesc struct {
	DataOffset int32
	Stride     int32
	Width      int32
	Height     int32
}

func (d *levelDesc) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(d.DataOffset))
	binary.LittleEndian.PutUint32(buf[4:], uint32(d.Stride))
	binary.LittleEndian.PutUint32(buf[8:], uint32(d.Width))
	binary.LittleEndian.PutUint32(buf[12:], uint32(d.Height))
}

func (d *levelDesc) unmarshal(buf []byte) {
	d.DataOffset = int32(binary.LittleEndian.Uint32(buf[0:]))
	d.Stride = int32(binary.LittleEndian.Uint32(buf[4:]))
	d.Width = int32(binary.LittleEndian.Uint32(buf[8:]))
	d.Height = int32(binary.LittleEndian.Uint32(buf[12:]))
}

// controlBlock is the host/device synchronization state. The host writes it
// last during upload, the cores bump TasksDone as tiles complete and the
// host polls it until TasksDone reaches TaskCount.
type controlBlock struct {
	TaskCount   uint32
	TasksDone   uint32
	Reserved    uint32
	ActiveCores uint32
	Start       uint32
}

func (c *controlBlock) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], c.TaskCount)
	binary.LittleEndian.PutUint32(buf[4:], c.TasksDone)
	binary.LittleEndian.PutUint32(buf[8:], c.Reserved)
	binary.LittleEndian.PutUint32(buf[12:], c.ActiveCores)
	binary.LittleEndian.PutUint32(buf[16:], c.Start)
}

func (c *controlBlock) unmarshal(buf []byte) {
	c.TaskCount = binary.LittleEndian.Uint32(buf[0:])
	c.TasksDone = binary.LittleEndian.Uint32(buf[4:])
	c.Reserved = binary.LittleEndian.Uint32(buf[8:])
	c.ActiveCores = binary.LittleEndian.Uint32(buf[12:])
	c.Start = binary.LittleEndian.Uint32(buf[16:])
}

// coreTimer is one core's cycle counter snapshot, read back for the timing
// log after completion.
type coreTimer struct {
	CoreID uint32
	Value  uint32
}

func (t *coreTimer) unmarshal(buf []byte) {
	t.CoreID = binary.LittleEndian.Uint32(buf[0:])
	t.Value = binary.LittleEndian.Uint32(buf[4:])
}

func (t *coreTimer) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], t.CoreID)
	binary.LittleEndian.PutUint32(buf[4:], t.Value)
}

// marshalTask encodes a task into its wire form: offset, area, width,
// height, stride, scan mode, detection count, level index, then the packed
// detection slots.
func marshalTask(t *facedet.Task, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], uint32(t.Offset))
	binary.LittleEndian.PutUint32(buf[4:], uint32(t.Area))
	binary.LittleEndian.PutUint32(buf[8:], uint32(t.Width))
	binary.LittleEndian.PutUint32(buf[12:], uint32(t.Height))
	binary.LittleEndian.PutUint32(buf[16:], uint32(t.Stride))
	binary.LittleEndian.PutUint32(buf[20:], uint32(t.Scan))
	binary.LittleEndian.PutUint32(buf[24:], uint32(t.Count))
	binary.LittleEndian.PutUint32(buf[28:], uint32(t.Level))
	for i, obj := range t.Objects {
		binary.LittleEndian.PutUint32(buf[32+4*i:], obj)
	}
}

func unmarshalTask(t *facedet.Task, buf []byte) {
	t.Offset = int(int32(binary.LittleEndian.Uint32(buf[0:])))
	t.Area = int(int32(binary.LittleEndian.Uint32(buf[4:])))
	t.Width = int(int32(binary.LittleEndian.Uint32(buf[8:])))
	t.Height = int(int32(binary.LittleEndian.Uint32(buf[12:])))
	t.Stride = int(int32(binary.LittleEndian.Uint32(buf[16:])))
	t.Scan = facedet.ScanMode(int32(binary.LittleEndian.Uint32(buf[20:])))
	t.Count = int(int32(binary.LittleEndian.Uint32(buf[24:])))
	t.Level = int(int32(binary.LittleEndian.Uint32(buf[28:])))
	for i := range t.Objects {
		t.Objects[i] = binary.LittleEndian.Uint32(buf[32+4*i:])
	}
}
