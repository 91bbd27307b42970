package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/term"

	facedet "github.com/olajep/face-detect/core"
	"github.com/olajep/face-detect/device"
	"github.com/olajep/face-detect/utils"
)

const banner = `
┌─┐┌─┐┌─┐┌─┐┌┬┐┌─┐┌┬┐
├┤ ├─┤│  ├┤  ││├┤  │
└  ┴ ┴└─┘└─┘─┴┘└─┘ ┴

LBP cascade face detection with many-core offload.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

const (
	markerRectangle = "rect"
	markerCircle    = "circle"

	successColor = "\x1b[92m"
	errorColor   = "\x1b[31m"
	defaultColor = "\x1b[0m"
)

// Version indicates the current build version.
var Version string

// detector bundles the command line settings.
type detector struct {
	cascadeFile  string
	destination  string
	scanMode     facedet.ScanMode
	deviceMode   bool
	cores        int
	iouThreshold float64
	minNeighbors int
	timingLog    string

	dev *device.Device
}

// detection is the JSON form of one detected face.
type detection struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func main() {
	var (
		source       = flag.String("in", pipeName, "Source image")
		destination  = flag.String("out", pipeName, "Destination image, 'empty' to skip writing it")
		cascadeFile  = flag.String("cf", "", "Cascade binary file")
		scanMode     = flag.String("scan", "even", "Scan mode: even|odd|full")
		mode         = flag.String("mode", "host", "Execution mode: host|device")
		cores        = flag.Int("cores", device.MaxCores, "Device core count")
		iouThreshold = flag.Float64("iou", 0.2, "Intersection over union (IoU) threshold")
		minNeighbors = flag.Int("neighbors", 3, "Minimum detections per group, 0 disables grouping")
		marker       = flag.String("marker", "rect", "Detection marker: rect|circle")
		jsonf        = flag.String("json", "", "Output the detection coordinates into a json file")
		timingLog    = flag.String("timelog", "", "Write the device timing log to this file")
		watch        = flag.Bool("watch", false, "Re-run detection when the input or cascade file changes")
	)

	log.SetFlags(0)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, banner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if len(*source) == 0 || len(*cascadeFile) == 0 {
		log.Fatal("Usage: facedet -in input.jpg -out out.png -cf cascade.bin")
	}

	scan, err := parseScanMode(*scanMode)
	if err != nil {
		log.Fatalf("%v", err)
	}

	det := &detector{
		cascadeFile:  *cascadeFile,
		destination:  *destination,
		scanMode:     scan,
		deviceMode:   *mode == "device",
		cores:        *cores,
		iouThreshold: *iouThreshold,
		minNeighbors: *minNeighbors,
		timingLog:    *timingLog,
	}
	switch *mode {
	case "host":
	case "device":
		det.dev, err = device.New(device.NewEmulator(det.cores), device.Options{Cores: det.cores})
		if err != nil {
			log.Fatalf("Device init error: %s%v%s", errorColor, err, defaultColor)
		}
	default:
		log.Fatalf("Unknown execution mode: %v", *mode)
	}

	if *watch {
		if *source == pipeName || *destination == pipeName {
			log.Fatal("-watch requires file paths for -in and -out")
		}
		watchAndDetect(det, *source, *marker, *jsonf)
		return
	}

	if err := runOnce(det, *source, *marker, *jsonf); err != nil {
		log.Fatalf("%s%v%s", errorColor, err, defaultColor)
	}
}

// runOnce performs a single detection pass and writes every requested
// output.
func runOnce(det *detector, source, marker, jsonf string) error {
	start := time.Now()

	ind := utils.NewProgressIndicator("Detecting faces...", time.Millisecond*100)
	ind.Start()

	faces, dc, err := det.detectFaces(source)
	if err != nil {
		ind.StopMsg = fmt.Sprintf("Detecting faces... %sfailed ✗%s\n", errorColor, defaultColor)
		ind.Stop()
		return fmt.Errorf("detection error: %v", err)
	}

	drawFaces(dc, faces, marker)

	ind.StopMsg = fmt.Sprintf("Detecting faces... %sfinished ✔%s", successColor, defaultColor)
	ind.Stop()

	if det.destination != "empty" {
		if err := det.encodeImage(dc); err != nil {
			return fmt.Errorf("error encoding the output image: %v", err)
		}
	}
	if jsonf != "" {
		if err := writeJSON(jsonf, faces); err != nil {
			return fmt.Errorf("error writing the json output: %v", err)
		}
	}
	if det.timingLog != "" && det.dev != nil {
		if err := det.writeTimingLog(); err != nil {
			return fmt.Errorf("error writing the timing log: %v", err)
		}
	}

	if len(faces) > 0 {
		log.Printf("\n%s%d%s face(s) detected", successColor, len(faces), defaultColor)
	} else {
		log.Printf("\n%sno detected faces!%s", errorColor, defaultColor)
	}
	log.Printf("\nExecution time: %s%.2fs%s\n", successColor, time.Since(start).Seconds(), defaultColor)
	return nil
}

// watchAndDetect re-runs the detection whenever the source image or the
// cascade file is rewritten.
func watchAndDetect(det *detector, source, marker, jsonf string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("Cannot create the file watcher: %v", err)
	}
	defer watcher.Close()

	for _, name := range []string{source, det.cascadeFile} {
		if err := watcher.Add(name); err != nil {
			log.Fatalf("Cannot watch %s: %v", name, err)
		}
	}

	if err := runOnce(det, source, marker, jsonf); err != nil {
		log.Printf("%s%v%s", errorColor, err, defaultColor)
	}
	log.Printf("Watching %s and %s for changes...", source, det.cascadeFile)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := runOnce(det, source, marker, jsonf); err != nil {
				log.Printf("%s%v%s", errorColor, err, defaultColor)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watch error: %v", err)
		}
	}
}

// detectFaces runs the detection pipeline over the source image and
// returns the grouped detections together with a drawing context holding
// the source pixels.
func (det *detector) detectFaces(source string) ([]facedet.Rect, *gg.Context, error) {
	var srcReader io.Reader
	if source == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			log.Fatalln("`-` should be used with a pipe for stdin")
		}
		srcReader = os.Stdin
	} else {
		file, err := os.Open(source)
		if err != nil {
			return nil, nil, err
		}
		defer file.Close()
		srcReader = file
	}

	src, err := imaging.Decode(srcReader)
	if err != nil {
		return nil, nil, err
	}

	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y
	dc := gg.NewContext(cols, rows)
	dc.DrawImage(src, 0, 0)

	img, err := facedet.FromImage(src)
	if err != nil {
		return nil, nil, err
	}

	cascade, err := facedet.LoadCascade(det.cascadeFile)
	if err != nil {
		return nil, nil, err
	}

	var backend facedet.Backend
	if det.dev != nil {
		backend = det.dev
	}
	faces, err := facedet.Detect(img, cascade, det.scanMode, backend)
	if err != nil {
		return nil, nil, err
	}

	if det.minNeighbors > 0 {
		faces = facedet.ClusterRects(faces, det.iouThreshold, det.minNeighbors)
	}
	return faces, dc, nil
}

// drawFaces marks the detections with the requested marker type.
func drawFaces(dc *gg.Context, faces []facedet.Rect, marker string) {
	for _, face := range faces {
		switch marker {
		case markerCircle:
			dc.DrawCircle(face.X+face.Width/2, face.Y+face.Height/2, face.Width/2)
		default:
			dc.DrawRectangle(face.X, face.Y, face.Width, face.Height)
		}
		dc.SetLineWidth(2.0)
		dc.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{R: 255, G: 0, B: 0, A: 255}))
		dc.Stroke()
	}
}

// encodeImage writes the annotated image to the destination.
func (det *detector) encodeImage(dc *gg.Context) error {
	var dst io.Writer
	if det.destination == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			log.Fatalln("`-` should be used with a pipe for stdout")
		}
		dst = os.Stdout
	} else {
		fileTypes := []string{".jpg", ".jpeg", ".png"}
		ext := filepath.Ext(det.destination)
		if !inSlice(ext, fileTypes) {
			return fmt.Errorf("output file type not supported: %v", ext)
		}
		fn, err := os.OpenFile(det.destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return fmt.Errorf("unable to open output file: %v", err)
		}
		defer fn.Close()
		dst = fn
	}

	img := dc.Image()
	switch f := dst.(type) {
	case *os.File:
		switch filepath.Ext(f.Name()) {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
		case ".png":
			return png.Encode(dst, img)
		default:
			return errors.New("unsupported image format")
		}
	default:
		return jpeg.Encode(dst, img, &jpeg.Options{Quality: 100})
	}
}

// writeJSON dumps the detection coordinates.
func writeJSON(name string, faces []facedet.Rect) error {
	var out io.Writer
	if name == pipeName {
		out = os.Stdout
	} else {
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	dets := make([]detection, len(faces))
	for i, face := range faces {
		dets[i] = detection{X: face.X, Y: face.Y, Width: face.Width, Height: face.Height}
	}
	return json.NewEncoder(out).Encode(dets)
}

// writeTimingLog dumps the device core timers.
func (det *detector) writeTimingLog() error {
	f, err := os.Create(det.timingLog)
	if err != nil {
		return err
	}
	defer f.Close()
	return det.dev.WriteTimingLog(f)
}

func parseScanMode(s string) (facedet.ScanMode, error) {
	switch s {
	case "even":
		return facedet.ScanEven, nil
	case "odd":
		return facedet.ScanOdd, nil
	case "full":
		return facedet.ScanFull, nil
	}
	return 0, fmt.Errorf("unknown scan mode: %v", s)
}

// inSlice checks if the item exists in the slice.
func inSlice(item string, slice []string) bool {
	for _, it := range slice {
		if it == item {
			return true
		}
	}
	return false
}
