// Package render draws a laid out timeline as an SVG constellation: one star
// per post, joined chronologically by a faint line.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0x0BSoD/constellation/internal/timeline"
)

// Style controls the look of the rendered constellation.
type Style struct {
	Width      int     `yaml:"width"`       // Canvas width in pixels
	Height     int     `yaml:"height"`      // Canvas height in pixels
	Background string  `yaml:"background"`  // Canvas fill color
	LineColor  string  `yaml:"line_color"`  // Stroke of the line joining the stars
	LineWidth  float64 `yaml:"line_width"`  // Width of that line
	StarColor  string  `yaml:"star_color"`  // Fill of the star markers
	StarRadius float64 `yaml:"star_radius"` // Radius of the star markers
	StarShape  string  `yaml:"star_shape"`  // "circle" or "diamond"
	DateFormat string  `yaml:"date_format"` // Go time layout used in tooltips
}

func DefaultStyle() Style {
	return Style{
		Width:      1600,
		Height:     900,
		Background: "#0b0d17",
		LineColor:  "rgba(255, 255, 255, 0.2)",
		LineWidth:  1,
		StarColor:  "#ffffff",
		StarRadius: 4,
		StarShape:  "circle",
		DateFormat: "January 2, 2006",
	}
}

// LoadStyle decodes a YAML style file on top of DefaultStyle. An empty path
// returns the defaults.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return style, fmt.Errorf("read style: %w", err)
	}
	if err := yaml.Unmarshal(data, &style); err != nil {
		return style, fmt.Errorf("parse style %s: %w", path, err)
	}

	return style, nil
}

// SVG writes the constellation for posts, which must be in the chronological
// order timeline.Engine.ComputeLayout returns.
func SVG(w io.Writer, posts []timeline.PlottedPost, style Style) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, style.Width, style.Height, style.Width, style.Height, escapeXML(style.Background))

	if len(posts) > 1 {
		points := make([]string, len(posts))
		for i, p := range posts {
			x, y := style.project(p)
			points[i] = fmt.Sprintf("%s,%s", formatFloat(x), formatFloat(y))
		}
		fmt.Fprintf(bw, `<polyline points="%s" fill="none" stroke="%s" stroke-width="%s"/>
`, strings.Join(points, " "), escapeXML(style.LineColor), formatFloat(style.LineWidth))
	}

	for _, p := range posts {
		drawStar(bw, p, style)
	}

	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// project converts percentage coordinates to pixels.
func (s Style) project(p timeline.PlottedPost) (float64, float64) {
	return p.X / 100 * float64(s.Width), p.Y / 100 * float64(s.Height)
}

func drawStar(w io.Writer, p timeline.PlottedPost, style Style) {
	x, y := style.project(p)
	r := style.StarRadius
	title := escapeXML(p.Title + " · " + p.CreatedAt.Format(style.DateFormat))

	fmt.Fprintf(w, `<g class="star" data-id="%s">`, escapeXML(p.ID))

	switch strings.ToLower(style.StarShape) {
	case "diamond":
		fmt.Fprintf(w, `<polygon points="%s,%s %s,%s %s,%s %s,%s" fill="%s">`,
			formatFloat(x), formatFloat(y-r), // top
			formatFloat(x+r), formatFloat(y), // right
			formatFloat(x), formatFloat(y+r), // bottom
			formatFloat(x-r), formatFloat(y), // left
			escapeXML(style.StarColor))
		fmt.Fprintf(w, `<title>%s</title></polygon>`, title)
	default:
		fmt.Fprintf(w, `<circle cx="%s" cy="%s" r="%s" fill="%s">`,
			formatFloat(x), formatFloat(y), formatFloat(r), escapeXML(style.StarColor))
		fmt.Fprintf(w, `<title>%s</title></circle>`, title)
	}

	fmt.Fprint(w, "</g>\n")
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
