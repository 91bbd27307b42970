/*
Package device offloads cascade detection to a many-core coprocessor that
shares a memory region with the host.

The host packs the image pyramid, the classifier blob and a bounded-size
tile list into the region, signals the cores to start, polls a completion
counter and reads back packed tile-local detections which it converts into
absolute rectangles. The hardware link is abstracted behind Transport; the
in-process Emulator implements both sides of the protocol for machines
without the hardware and for tests.
*/
package device
