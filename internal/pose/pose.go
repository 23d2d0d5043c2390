// Package pose converts structured pose-estimation results into vector
// layer content.
package pose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eikaru/canvasgen/internal/canvas"
)

// result is the OpenPose-style JSON produced by pose control jobs.
type result struct {
	CanvasWidth  int      `json:"canvas_width"`
	CanvasHeight int      `json:"canvas_height"`
	People       []person `json:"people"`
}

type person struct {
	Keypoints []float64 `json:"pose_keypoints_2d"`
}

// limbs are pairs of keypoint indices in the COCO-18 layout.
var limbs = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4}, {1, 5}, {5, 6}, {6, 7},
	{1, 8}, {8, 9}, {9, 10}, {1, 11}, {11, 12}, {12, 13},
	{0, 14}, {14, 16}, {0, 15}, {15, 17},
}

// ToSVG renders a pose result as an SVG document scaled to the target
// extent. Keypoints with zero confidence are omitted.
func ToSVG(data json.RawMessage, extent canvas.Extent) (string, error) {
	var res result
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("failed to parse pose result: %w", err)
	}
	if res.CanvasWidth <= 0 || res.CanvasHeight <= 0 {
		return "", fmt.Errorf("pose result has invalid canvas size %dx%d", res.CanvasWidth, res.CanvasHeight)
	}
	sx := float64(extent.Width) / float64(res.CanvasWidth)
	sy := float64(extent.Height) / float64(res.CanvasHeight)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`,
		extent.Width, extent.Height)
	for _, p := range res.People {
		points := make([][3]float64, len(p.Keypoints)/3)
		for i := range points {
			points[i] = [3]float64{p.Keypoints[i*3] * sx, p.Keypoints[i*3+1] * sy, p.Keypoints[i*3+2]}
		}
		for _, limb := range limbs {
			if limb[0] >= len(points) || limb[1] >= len(points) {
				continue
			}
			a, c := points[limb[0]], points[limb[1]]
			if a[2] == 0 || c[2] == 0 {
				continue
			}
			fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#00b300" stroke-width="4"/>`,
				a[0], a[1], c[0], c[1])
		}
		for _, pt := range points {
			if pt[2] == 0 {
				continue
			}
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="4" fill="#ff0000"/>`, pt[0], pt[1])
		}
	}
	b.WriteString("</svg>")
	return b.String(), nil
}
