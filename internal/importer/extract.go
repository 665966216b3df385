package importer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

type media struct {
	Image string
	Video string
}

// extractMedia picks the first image and the first YouTube embed of an
// item's HTML body.
func extractMedia(html string) media {
	var m media

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return m
	}

	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		m.Image = strings.TrimSpace(src)
		return m.Image == ""
	})

	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if isYouTube(src) {
			m.Video = strings.TrimSpace(src)
			return false
		}
		return true
	})

	return m
}

func isYouTube(src string) bool {
	return strings.Contains(src, "youtube.com/") || strings.Contains(src, "youtu.be/")
}

var redundantNewLines = regexp.MustCompile(`\n{3,}`)

// plainText extracts the readable text of an HTML fragment. Fragments too
// small for readability fall back to their raw text nodes.
func plainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	var text string
	if article, err := readability.FromReader(strings.NewReader(html), nil); err == nil {
		text = article.TextContent
	}
	if strings.TrimSpace(text) == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			text = doc.Text()
		}
	}

	return cleanupText(text)
}

func cleanupText(text string) string {
	return strings.TrimSpace(redundantNewLines.ReplaceAllString(text, "\n"))
}
