// Package geometry resolves the rotated ROI rectangle against a frame.
//
// Resolve builds the oriented rectangle from a config.ROIConfig, extracts its
// four integer corners in the fixed rotated-rectangle enumeration order,
// labels them left/top/right/bottom by coordinate extremes, derives the tilt
// direction from the enumeration index of the left corner and nudges corners
// that fall outside the frame back onto the frame border.
//
// # Corner enumeration
//
// Corners come from OpenCV's boxPoints, in its fixed order: for angle 0 they are bottom-left, top-left, top-right,
// bottom-right. Edge 0→1 has the rectangle's height, edge 1→2 its width, and
// the enumeration runs clockwise on screen for every angle.
//
// # Ties
//
// When two corners share an extreme (axis-aligned rectangles, or near-aligned
// ones after integer truncation), roles are assigned so they stay distinct and
// follow the enumeration cycle: the left corner is the lowest index L among
// the minimum-x corners for which L+1, L+2 and L+3 (mod 4) are minimum-y,
// maximum-x and maximum-y corners respectively.
//
// # Out-of-bounds correction
//
// Each violated frame edge is corrected independently: the offending corner is
// clamped to the edge and one neighbour, chosen by tilt, is shifted by the
// overflow. Violations on two edges at once are not composed.
package geometry
