// Package model holds the types shared across constellation: posts plotted
// as stars, raw feed items and the editable site settings.
package model

import (
	"strings"
	"time"
)

type Post struct {
	ID          string
	Title       string
	Content     string
	CreatedAt   time.Time
	MediaURL    string
	VideoURL    string
	ExternalURL string
	NewTab      bool
}

type Item struct {
	Title      string
	Categories []string
	Link       string
	Date       time.Time
	Content    string
	SourceName string
}

// Setting keys as stored in the site_settings table.
const (
	SettingHeadline      = "headline"
	SettingAboutContent  = "about_content"
	SettingAboutMediaURL = "about_media_url"
	SettingAboutVideoURL = "about_video_url"
)

type SiteSettings struct {
	Headline      string
	AboutContent  string
	AboutMediaURL string
	AboutVideoURL string
}

// Pairs returns the settings as key/value pairs in a fixed order.
func (s SiteSettings) Pairs() [][2]string {
	return [][2]string{
		{SettingHeadline, s.Headline},
		{SettingAboutContent, s.AboutContent},
		{SettingAboutMediaURL, s.AboutMediaURL},
		{SettingAboutVideoURL, s.AboutVideoURL},
	}
}

// Set assigns value to the field named by key. Unknown keys are ignored.
func (s *SiteSettings) Set(key, value string) {
	switch key {
	case SettingHeadline:
		s.Headline = value
	case SettingAboutContent:
		s.AboutContent = value
	case SettingAboutMediaURL:
		s.AboutMediaURL = value
	case SettingAboutVideoURL:
		s.AboutVideoURL = value
	}
}

// EmbedURL turns a YouTube watch link into its embeddable form.
// Other URLs are returned as is.
func EmbedURL(videoURL string) string {
	return strings.Replace(videoURL, "watch?v=", "embed/", 1)
}
