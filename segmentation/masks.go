package segmentation

// Class masks exist only transiently while a sample is scored; they are never
// part of the public surface.

// boundaryPoint is a foreground pixel with at least one 4-connected background
// neighbor. Pixels on the array border count as boundary when foreground,
// since the implicit outside of the image is background.
type boundaryPoint struct {
	y, x int
}

// classMask isolates one class of a label map as a binary mask.
func classMask(m LabelMap, class int) []bool {
	mask := make([]bool, len(m.Labels))
	for i, label := range m.Labels {
		mask[i] = label == class
	}
	return mask
}

// foregroundMask merges every non-background class into one binary mask.
func foregroundMask(m LabelMap) []bool {
	mask := make([]bool, len(m.Labels))
	for i, label := range m.Labels {
		mask[i] = label != 0
	}
	return mask
}

// boundary extracts the boundary points of a binary mask using 4-connectivity.
func boundary(mask []bool, height, width int) []boundaryPoint {
	var points []boundaryPoint
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !mask[y*width+x] {
				continue
			}
			if y == 0 || y == height-1 || x == 0 || x == width-1 ||
				!mask[(y-1)*width+x] || !mask[(y+1)*width+x] ||
				!mask[y*width+x-1] || !mask[y*width+x+1] {
				points = append(points, boundaryPoint{y: y, x: x})
			}
		}
	}
	return points
}
