package slicer

// luma converts an RGBA pixel buffer into a luminance plane
// using the Rec. 601 weights in integer arithmetic.
func luma(pix []uint8, width, height int) []uint8 {
	gray := make([]uint8, width*height)
	for i := range gray {
		r, g, b := int(pix[i*4]), int(pix[i*4+1]), int(pix[i*4+2])
		gray[i] = uint8((299*r + 587*g + 114*b) / 1000)
	}
	return gray
}
