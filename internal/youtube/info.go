package youtube

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// SubtitleTrack is one downloadable subtitle rendition.
type SubtitleTrack struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// Info is the metadata of a video, or of a playlist or channel with its
// videos as Children.
type Info struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	Ext         string                     `json:"ext"`
	Thumbnail   string                     `json:"thumbnail"`
	SourceURL   string                     `json:"source_url"`
	Tags        []string                   `json:"tags"`
	Subtitles   map[string][]SubtitleTrack `json:"subtitles"`
	Artist      string                     `json:"artist"`
	License     string                     `json:"license"`
	Kind        string                     `json:"kind"`
	// local path, set after a download
	Filename string  `json:"filename,omitempty"`
	Children []*Info `json:"children,omitempty"`
}

// IsCollection reports whether the info describes a playlist or channel.
func (i *Info) IsCollection() bool {
	return len(i.Children) > 0 || i.Kind == "playlist"
}

// Videos returns the leaf videos: the children of a collection, or the
// info itself.
func (i *Info) Videos() []*Info {
	if i.IsCollection() {
		return i.Children
	}
	return []*Info{i}
}

// ParseInfo reads a yt-dlp JSON dump. Missing fields get defaults; null
// playlist entries, left by videos that failed extraction, are skipped.
func ParseInfo(data []byte) (*Info, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid yt-dlp output")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("invalid yt-dlp output: expected an object")
	}
	return parseInfo(root), nil
}

func parseInfo(r gjson.Result) *Info {
	info := &Info{
		ID:          r.Get("id").String(),
		Title:       r.Get("title").String(),
		Description: r.Get("description").String(),
		Ext:         stringOr(r.Get("ext"), "mp4"),
		Thumbnail:   r.Get("thumbnail").String(),
		SourceURL:   r.Get("webpage_url").String(),
		Tags:        []string{},
		Subtitles:   map[string][]SubtitleTrack{},
		Artist:      r.Get("artist").String(),
		License:     r.Get("license").String(),
		Kind:        stringOr(r.Get("_type"), "video"),
	}
	for _, tag := range r.Get("tags").Array() {
		info.Tags = append(info.Tags, tag.String())
	}
	r.Get("subtitles").ForEach(func(lang, tracks gjson.Result) bool {
		var list []SubtitleTrack
		for _, t := range tracks.Array() {
			list = append(list, SubtitleTrack{
				Ext:  t.Get("ext").String(),
				URL:  t.Get("url").String(),
				Name: t.Get("name").String(),
			})
		}
		info.Subtitles[lang.String()] = list
		return true
	})
	if entries := r.Get("entries"); entries.Exists() {
		info.Children = []*Info{}
		for _, entry := range entries.Array() {
			if !entry.IsObject() {
				continue
			}
			info.Children = append(info.Children, parseInfo(entry))
		}
	}
	return info
}

func stringOr(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null || r.String() == "" {
		return def
	}
	return r.String()
}
