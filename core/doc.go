/*
Package facedet implements multi-scale face detection with a staged
local-binary-pattern (LBP) cascade classifier.

The classifier is a validated binary stream of typed nodes interpreted by a
small decision VM. Detection searches the image at many scales through a
pyramid built from three fixed-ratio scalings (7/8, 6/8, 5/8 of every 8x8
block) halved per octave, so level i maps back to source coordinates with
the factor (8<<(i/4))/(8-i%4).

Scanning runs either on the host, with rows spread dynamically over a
goroutine pool, or on a many-core coprocessor through the offload protocol
in the companion device package, which partitions levels into bounded tiles
with PlanTiles and reconstructs absolute rectangles from packed tile-local
results.

	cascade, err := facedet.LoadCascade("/path/to/cascade")
	if err != nil {
		log.Fatalf("Error reading the cascade file: %v", err)
	}

	img, err := facedet.FromImage(src)
	if err != nil {
		log.Fatalf("Cannot convert the image: %v", err)
	}

	dets, err := facedet.Detect(img, cascade, facedet.ScanEven, nil)
	if err != nil {
		log.Fatalf("Detection failed: %v", err)
	}
	dets = facedet.ClusterRects(dets, 0.2, 3)
*/
package facedet
