package geom

// BoxIndices is the triangle list for the eight corners of an AABB in
// Corner order: 12 triangles, 36 indices.
var BoxIndices = [36]uint16{
	0, 3, 1,
	0, 2, 3,
	6, 5, 7,
	6, 4, 5,
	2, 4, 6,
	2, 0, 4,
	1, 7, 5,
	1, 3, 7,
	6, 7, 2,
	2, 7, 3,
	0, 1, 4,
	4, 1, 5,
}

// BoxEdges lists the 12 edges of an AABB as corner index pairs.
var BoxEdges = [12][2]int{
	// Bottom face
	{0, 1}, {1, 5}, {5, 4}, {4, 0},
	// Top face
	{2, 3}, {3, 7}, {7, 6}, {6, 2},
	// Verticals
	{0, 2}, {1, 3}, {5, 7}, {4, 6},
}

// BoxIndexBuffer returns indices for count boxes stored back to back, eight
// vertices per box.
func BoxIndexBuffer(count int) []uint16 {
	out := make([]uint16, 0, count*len(BoxIndices))
	for box := 0; box < count; box++ {
		offset := uint16(box * 8)
		for _, idx := range BoxIndices {
			out = append(out, idx+offset)
		}
	}
	return out
}
