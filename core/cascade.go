package facedet

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Cascade file magic ("FDCC" little-endian).
const magicCascade = 0x43434446

// Node type tags. The interpreter branches on a zero byte to recognize a
// decision node, so nodeDecision must stay 0.
const (
	nodeDecision = 0
	nodeStage    = 1
	nodeFinal    = 2
	nodeMeta     = 3
)

// On-disk node sizes in bytes. Every field is a little-endian 32-bit value.
const (
	metaNodeSize     = 12 // tag, window width, window height
	decisionNodeSize = 44 // tag, packed feature, score, 8 subset rows
	stageNodeSize    = 8  // tag, threshold
	finalNodeSize    = 4  // tag
	minCascadeSize   = metaNodeSize + decisionNodeSize + stageNodeSize + finalNodeSize
)

const minWindowSize = 3

// node is one decoded cascade instruction. Decision nodes use feature
// geometry, score and subsets; stage nodes use only the threshold.
type node struct {
	kind      uint8
	blockW    int
	blockH    int
	dx        int
	dy        int
	score     int32
	subsets   [8]uint32
	threshold int32
}

// Cascade is a validated LBP cascade classifier. The raw node blob is kept
// for device upload and re-saving; the interpreter runs over the decoded
// instruction slice.
type Cascade struct {
	blob         []byte
	windowWidth  int
	windowHeight int
	nodes        []node
}

// WindowWidth returns the scanning window width in pixels.
func (c *Cascade) WindowWidth() int { return c.windowWidth }

// WindowHeight returns the scanning window height in pixels.
func (c *Cascade) WindowHeight() int { return c.windowHeight }

// Blob returns the raw validated node stream.
func (c *Cascade) Blob() []byte { return c.blob }

// Checksum sums the blob bytes as signed values, matching the image
// checksum convention.
func (c *Cascade) Checksum() int {
	sum := 0
	for _, b := range c.blob {
		sum += int(int8(b))
	}
	return sum
}

// checkCascade performs the structural validation that gates every use of a
// cascade blob: minimum size, meta node first with a sane window, a decision
// node second, a stage node second-to-last and a final node last.
func checkCascade(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty cascade", ErrInvalidArgument)
	}
	if len(blob) < minCascadeSize {
		return ErrCascadeTruncated
	}
	if binary.LittleEndian.Uint32(blob) != nodeMeta {
		return ErrCascadeNoMeta
	}
	width := int(int32(binary.LittleEndian.Uint32(blob[4:])))
	height := int(int32(binary.LittleEndian.Uint32(blob[8:])))
	if width < minWindowSize || height < minWindowSize {
		return ErrWindowTooSmall
	}
	if binary.LittleEndian.Uint32(blob[metaNodeSize:]) != nodeDecision {
		return ErrCascadeNoDecision
	}
	if binary.LittleEndian.Uint32(blob[len(blob)-finalNodeSize:]) != nodeFinal {
		return ErrCascadeNoFinal
	}
	if binary.LittleEndian.Uint32(blob[len(blob)-finalNodeSize-stageNodeSize:]) != nodeStage {
		return ErrCascadeNoStage
	}
	return nil
}

// decodeNodes walks the node stream starting right after the meta node and
// decodes every instruction up to and including the final node. It returns
// the decoded nodes and the total number of bytes consumed, including the
// meta node. Trailing bytes after the final node are ignored, which lets the
// device side decode a padded upload with the same routine.
func decodeNodes(blob []byte) ([]node, int, error) {
	nodes := make([]node, 0, 64)
	pos := metaNodeSize
	prevStage := false
	for {
		if pos+finalNodeSize > len(blob) {
			return nil, 0, ErrCascadeTruncated
		}
		tag := binary.LittleEndian.Uint32(blob[pos:])
		switch tag {
		case nodeDecision:
			if pos+decisionNodeSize > len(blob) {
				return nil, 0, ErrCascadeTruncated
			}
			feature := binary.LittleEndian.Uint32(blob[pos+4:])
			n := node{
				kind:   nodeDecision,
				blockW: int(feature & 255),
				blockH: int(feature >> 8 & 255),
				dx:     int(feature >> 16 & 255),
				dy:     int(feature >> 24),
				score:  int32(binary.LittleEndian.Uint32(blob[pos+8:])),
			}
			if n.blockW == 0 || n.blockH == 0 {
				return nil, 0, fmt.Errorf("%w: zero-sized feature block", ErrCorruptData)
			}
			for i := range n.subsets {
				n.subsets[i] = binary.LittleEndian.Uint32(blob[pos+12+4*i:])
			}
			nodes = append(nodes, n)
			pos += decisionNodeSize
			prevStage = false
		case nodeStage:
			if pos+stageNodeSize > len(blob) {
				return nil, 0, ErrCascadeTruncated
			}
			if prevStage {
				return nil, 0, fmt.Errorf("%w: consecutive stage nodes", ErrCorruptData)
			}
			nodes = append(nodes, node{
				kind:      nodeStage,
				threshold: int32(binary.LittleEndian.Uint32(blob[pos+4:])),
			})
			pos += stageNodeSize
			prevStage = true
		case nodeFinal:
			nodes = append(nodes, node{kind: nodeFinal})
			return nodes, pos + finalNodeSize, nil
		default:
			return nil, 0, fmt.Errorf("%w: unknown node tag %d at offset %d", ErrCorruptData, tag, pos)
		}
	}
}

// UnpackCascade validates a cascade blob and decodes it into a runnable
// classifier. The blob must contain exactly one node stream.
func UnpackCascade(blob []byte) (*Cascade, error) {
	if err := checkCascade(blob); err != nil {
		return nil, err
	}
	nodes, consumed, err := decodeNodes(blob)
	if err != nil {
		return nil, err
	}
	if consumed != len(blob) {
		return nil, fmt.Errorf("%w: %d trailing bytes after the final node",
			ErrCorruptData, len(blob)-consumed)
	}
	c := &Cascade{
		blob:         append([]byte(nil), blob...),
		windowWidth:  int(int32(binary.LittleEndian.Uint32(blob[4:]))),
		windowHeight: int(int32(binary.LittleEndian.Uint32(blob[8:]))),
		nodes:        nodes,
	}
	return c, nil
}

// UnpackCascadeStream decodes a cascade from the start of a buffer that may
// carry trailing padding, as uploaded to the device shared region. It
// returns the classifier and the number of blob bytes consumed.
func UnpackCascadeStream(buf []byte) (*Cascade, int, error) {
	if err := checkCascadeHead(buf); err != nil {
		return nil, 0, err
	}
	nodes, consumed, err := decodeNodes(buf)
	if err != nil {
		return nil, 0, err
	}
	c := &Cascade{
		blob:         append([]byte(nil), buf[:consumed]...),
		windowWidth:  int(int32(binary.LittleEndian.Uint32(buf[4:]))),
		windowHeight: int(int32(binary.LittleEndian.Uint32(buf[8:]))),
		nodes:        nodes,
	}
	if err := checkCascade(c.blob); err != nil {
		return nil, 0, err
	}
	return c, consumed, nil
}

// checkCascadeHead validates only the leading meta node, enough to start a
// stream decode when the exact blob length is not known yet.
func checkCascadeHead(buf []byte) error {
	if len(buf) < minCascadeSize {
		return ErrCascadeTruncated
	}
	if binary.LittleEndian.Uint32(buf) != nodeMeta {
		return ErrCascadeNoMeta
	}
	width := int(int32(binary.LittleEndian.Uint32(buf[4:])))
	height := int(int32(binary.LittleEndian.Uint32(buf[8:])))
	if width < minWindowSize || height < minWindowSize {
		return ErrWindowTooSmall
	}
	return nil
}

// SaveCascade writes the classifier to a binary file: int32 magic, int32
// blob size, then the blob.
func SaveCascade(c *Cascade, name string) error {
	if c == nil || len(c.blob) == 0 {
		return fmt.Errorf("%w: cannot save an empty cascade", ErrInvalidArgument)
	}
	buf := make([]byte, 8+len(c.blob))
	binary.LittleEndian.PutUint32(buf[0:], magicCascade)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(c.blob)))
	copy(buf[8:], c.blob)
	if err := os.WriteFile(name, buf, 0644); err != nil {
		return fmt.Errorf("writing cascade file: %w", err)
	}
	return nil
}

// LoadCascade reads and validates a file previously written by SaveCascade.
func LoadCascade(name string) (*Cascade, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading cascade file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: cascade file header is short", ErrCorruptData)
	}
	if binary.LittleEndian.Uint32(data) != magicCascade {
		return nil, ErrBadMagic
	}
	size := int(int32(binary.LittleEndian.Uint32(data[4:])))
	if size <= 0 || len(data) != 8+size {
		return nil, fmt.Errorf("%w: cascade payload is %d bytes, header says %d",
			ErrCorruptData, len(data)-8, size)
	}
	return UnpackCascade(data[8:])
}

// CascadeBuilder composes a valid cascade blob node by node. It exists for
// classifier conversion tools and tests; the usual path is LoadCascade.
type CascadeBuilder struct {
	buf []byte
}

// NewCascadeBuilder starts a cascade with the given scanning window.
func NewCascadeBuilder(windowWidth, windowHeight int) *CascadeBuilder {
	b := &CascadeBuilder{buf: make([]byte, metaNodeSize)}
	binary.LittleEndian.PutUint32(b.buf[0:], nodeMeta)
	binary.LittleEndian.PutUint32(b.buf[4:], uint32(windowWidth))
	binary.LittleEndian.PutUint32(b.buf[8:], uint32(windowHeight))
	return b
}

// AddDecision appends a decision node. blockW/blockH are the LBP block size
// and dx/dy the feature offset inside the window, each packed into one byte.
func (b *CascadeBuilder) AddDecision(blockW, blockH, dx, dy int, score int32, subsets [8]uint32) {
	n := make([]byte, decisionNodeSize)
	binary.LittleEndian.PutUint32(n[0:], nodeDecision)
	feature := uint32(blockW&255) | uint32(blockH&255)<<8 | uint32(dx&255)<<16 | uint32(dy&255)<<24
	binary.LittleEndian.PutUint32(n[4:], feature)
	binary.LittleEndian.PutUint32(n[8:], uint32(score))
	for i, s := range subsets {
		binary.LittleEndian.PutUint32(n[12+4*i:], s)
	}
	b.buf = append(b.buf, n...)
}

// AddStage appends a stage node with the given rejection threshold.
func (b *CascadeBuilder) AddStage(threshold int32) {
	n := make([]byte, stageNodeSize)
	binary.LittleEndian.PutUint32(n[0:], nodeStage)
	binary.LittleEndian.PutUint32(n[4:], uint32(threshold))
	b.buf = append(b.buf, n...)
}

// Build appends the final node, validates the result and returns the
// runnable classifier.
func (b *CascadeBuilder) Build() (*Cascade, error) {
	blob := make([]byte, len(b.buf)+finalNodeSize)
	copy(blob, b.buf)
	binary.LittleEndian.PutUint32(blob[len(b.buf):], nodeFinal)
	return UnpackCascade(blob)
}
