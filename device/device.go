package device

import (
	"fmt"
	"io"
	"time"

	facedet "github.com/olajep/face-detect/core"
)

// Default polling parameters. The wait for the cores is bounded; a stuck
// device surfaces as ErrTimeout instead of hanging the host.
const (
	DefaultPollInterval = 100 * time.Microsecond
	DefaultPollTimeout  = 30 * time.Second
)

// Options configure a Device.
type Options struct {
	// Cores is the number of execution units to activate, capped at
	// MaxCores. 0 means MaxCores.
	Cores int
	// PollInterval is the delay between completion-counter reads.
	PollInterval time.Duration
	// PollTimeout bounds the wait for the cores to finish.
	PollTimeout time.Duration
}

// Device drives a many-core coprocessor through the offload protocol:
// upload pyramid, classifier and task list into the shared region, start
// the cores, poll the completion counter, then download the task array and
// reconstruct absolute detection rectangles. It implements facedet.Backend.
type Device struct {
	transport    Transport
	cores        int
	pollInterval time.Duration
	pollTimeout  time.Duration

	stats    []CoreStat
	waitTime time.Duration
}

// CoreStat is one core's busy time as reported by its cycle timer.
type CoreStat struct {
	CoreID int
	Busy   time.Duration
}

// New wraps a transport into a detection device.
func New(t Transport, opts Options) (*Device, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrDevice)
	}
	cores := opts.Cores
	if cores == 0 {
		cores = MaxCores
	}
	if cores < 0 || cores > MaxCores {
		return nil, fmt.Errorf("%w: core count %d out of range", ErrDevice, opts.Cores)
	}
	d := &Device{
		transport:    t,
		cores:        cores,
		pollInterval: opts.PollInterval,
		pollTimeout:  opts.PollTimeout,
	}
	if d.pollInterval <= 0 {
		d.pollInterval = DefaultPollInterval
	}
	if d.pollTimeout <= 0 {
		d.pollTimeout = DefaultPollTimeout
	}
	return d, nil
}

// DetectPyramid offloads the pyramid scan to the device and returns the
// reconstructed detections.
func (d *Device) DetectPyramid(p *facedet.Pyramid, c *facedet.Cascade, scan facedet.ScanMode) ([]facedet.Rect, error) {
	d.stats = nil
	d.waitTime = 0
	if len(p.Levels) == 0 {
		return nil, nil
	}

	descs, err := d.uploadPyramid(p)
	if err != nil {
		return nil, err
	}
	if err := d.uploadCascade(c); err != nil {
		return nil, err
	}
	tasks, err := d.uploadTasks(p, c, scan)
	if err != nil {
		return nil, err
	}

	control := controlBlock{
		TaskCount:   uint32(len(tasks)),
		ActiveCores: uint32(d.cores),
	}
	buf := make([]byte, controlSize)
	control.marshal(buf)
	if err := writeFull(d.transport, buf, controlOffset); err != nil {
		return nil, err
	}

	if err := d.transport.Start(); err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrDevice, err)
	}

	if err := d.pollCompletion(len(tasks)); err != nil {
		return nil, err
	}

	rects, err := d.downloadResults(tasks, descs, c, p.OffsetX, p.OffsetY)
	if err != nil {
		return nil, err
	}
	if err := d.downloadTimers(); err != nil {
		return nil, err
	}
	return rects, nil
}

// uploadPyramid packs every level's pixel buffer into the region and writes
// the descriptor array.
func (d *Device) uploadPyramid(p *facedet.Pyramid) ([]levelDesc, error) {
	if len(p.Levels) > maxLevels {
		return nil, fmt.Errorf("%w: %d pyramid levels, capacity is %d", ErrDevice, len(p.Levels), maxLevels)
	}
	descs := make([]levelDesc, len(p.Levels))
	cur := 0
	for i, level := range p.Levels {
		img := level.Image
		size := img.Stride * img.Height
		if cur+size > pyramidCapacity {
			return nil, fmt.Errorf("%w: pyramid exceeds region capacity", ErrDevice)
		}
		descs[i] = levelDesc{
			DataOffset: int32(cur),
			Stride:     int32(img.Stride),
			Width:      int32(img.Width),
			Height:     int32(img.Height),
		}
		if err := writeFull(d.transport, img.Data[:size], int64(pixelsOffset+cur)); err != nil {
			return nil, err
		}
		cur += size
	}

	buf := make([]byte, len(descs)*levelDescSize)
	for i := range descs {
		descs[i].marshal(buf[i*levelDescSize:])
	}
	if err := writeFull(d.transport, buf, descsOffset); err != nil {
		return nil, err
	}
	return descs, nil
}

// uploadCascade writes the classifier blob, padded to 8 bytes, after
// checking it fits the device's classifier area. An oversized classifier is
// fatal, not retried.
func (d *Device) uploadCascade(c *facedet.Cascade) error {
	blob := c.Blob()
	padded := (len(blob) + 7) &^ 7
	if padded > classifierCapacity {
		return fmt.Errorf("%w: %d bytes, capacity is %d", ErrCascadeTooLarge, len(blob), classifierCapacity)
	}
	buf := make([]byte, padded)
	copy(buf, blob)
	return writeFull(d.transport, buf, classifierOffset)
}

// uploadTasks plans the tile list for every level and writes the task
// array.
func (d *Device) uploadTasks(p *facedet.Pyramid, c *facedet.Cascade, scan facedet.ScanMode) ([]facedet.Task, error) {
	var tasks []facedet.Task
	for _, level := range p.Levels {
		img := level.Image
		tasks = append(tasks, facedet.PlanTiles(
			img.Width, img.Height, img.Stride,
			c.WindowWidth(), c.WindowHeight(),
			level.Index, scan)...)
	}
	if len(tasks) > maxTasks {
		return nil, fmt.Errorf("%w: %d tasks, capacity is %d", ErrDevice, len(tasks), maxTasks)
	}
	buf := make([]byte, len(tasks)*taskWireSize)
	for i := range tasks {
		marshalTask(&tasks[i], buf[i*taskWireSize:])
	}
	if err := writeFull(d.transport, buf, tasksOffset); err != nil {
		return nil, err
	}
	return tasks, nil
}

// pollCompletion busy-waits on the control block until every task is done
// or the deadline passes.
func (d *Device) pollCompletion(taskCount int) error {
	start := time.Now()
	deadline := start.Add(d.pollTimeout)
	buf := make([]byte, controlSize)
	var control controlBlock
	for {
		if err := readFull(d.transport, buf, controlOffset); err != nil {
			return err
		}
		control.unmarshal(buf)
		if control.TasksDone == uint32(taskCount) {
			d.waitTime = time.Since(start)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d of %d tasks after %v",
				ErrTimeout, control.TasksDone, taskCount, d.pollTimeout)
		}
		time.Sleep(d.pollInterval)
	}
}

// downloadResults reads back the task array and converts the packed
// tile-local detections into absolute rectangles: tile origin from the task
// offset and level stride, level scale from the pyramid index, plus the
// block-scaler margins.
func (d *Device) downloadResults(tasks []facedet.Task, descs []levelDesc, c *facedet.Cascade, offsetX, offsetY int) ([]facedet.Rect, error) {
	buf := make([]byte, len(tasks)*taskWireSize)
	if err := readFull(d.transport, buf, tasksOffset); err != nil {
		return nil, err
	}

	var rects []facedet.Rect
	for i := range tasks {
		var task facedet.Task
		unmarshalTask(&task, buf[i*taskWireSize:])

		if task.Level < 0 || task.Level >= len(descs) {
			return nil, fmt.Errorf("%w: task %d reports level %d", ErrDevice, i, task.Level)
		}
		if task.Count < 0 || task.Count > facedet.MaxDetectionsPerTile {
			return nil, fmt.Errorf("%w: task %d reports %d detections", ErrDevice, i, task.Count)
		}

		stride := int(descs[task.Level].Stride)
		tileX := task.Offset % stride
		tileY := task.Offset / stride

		scale := facedet.Scale(task.Level)
		width := float64(c.WindowWidth()) * scale
		height := float64(c.WindowHeight()) * scale

		for j := 0; j < task.Count; j++ {
			packed := task.Objects[j]
			relX := int(packed & 0xffff)
			relY := int(packed >> 16)
			rects = append(rects, facedet.Rect{
				X:      float64(tileX+relX)*scale + float64(offsetX),
				Y:      float64(tileY+relY)*scale + float64(offsetY),
				Width:  width,
				Height: height,
			})
		}
	}
	return rects, nil
}

// downloadTimers reads the per-core cycle counters into CoreStats.
func (d *Device) downloadTimers() error {
	buf := make([]byte, d.cores*timerSize)
	if err := readFull(d.transport, buf, timersOffset); err != nil {
		return err
	}
	d.stats = make([]CoreStat, d.cores)
	for i := 0; i < d.cores; i++ {
		var t coreTimer
		t.unmarshal(buf[i*timerSize:])
		d.stats[i] = CoreStat{
			CoreID: int(t.CoreID),
			Busy:   time.Duration(t.Value) * time.Microsecond,
		}
	}
	return nil
}

// CoreStats returns the per-core busy times of the last detection run.
func (d *Device) CoreStats() []CoreStat {
	return d.stats
}

// WriteTimingLog writes a human-readable summary of the last run: host wait
// time and per-core busy times.
func (d *Device) WriteTimingLog(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "------- Timers result in seconds ------\n\n"); err != nil {
		return err
	}
	fmt.Fprintf(w, "Host detection wait time: %f\n\n", d.waitTime.Seconds())
	fmt.Fprintf(w, "Work times per cores\n")
	fmt.Fprintf(w, "=============================================\n")
	total := time.Duration(0)
	for _, s := range d.stats {
		fmt.Fprintf(w, "\tCore #%d:\t%f\n", s.CoreID, s.Busy.Seconds())
		total += s.Busy
	}
	fmt.Fprintf(w, "=============================================\n")
	if len(d.stats) > 0 {
		fmt.Fprintf(w, "Average cores time: %f\n", total.Seconds()/float64(len(d.stats)))
	}
	_, err := fmt.Fprintf(w, "Total cores time: %f\n", total.Seconds())
	return err
}

// Close releases the underlying transport.
func (d *Device) Close() error {
	return d.transport.Close()
}
