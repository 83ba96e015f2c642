// Package task implements the two task kinds a job decomposes into:
// FetchUrlContents (URL expansion) and DownloadAndConvert (the actual
// download+remux).
package task

import (
	"encoding/json"
	"fmt"
)

// VideoInfo is one downloadable item, whether standalone or a playlist
// entry.
type VideoInfo struct {
	URL       string
	Title     string
	Thumbnail string
}

// PlaylistInfo is a URL that expanded into multiple videos.
type PlaylistInfo struct {
	URL       string
	Title     string
	Thumbnail string
	Videos    []VideoInfo
}

// Contents is the parsed result of a FetchUrlContents task: either a
// single video or a playlist, both reduced to VideoInfo entries.
type Contents struct {
	Title     string
	Thumbnail string
	Videos    []VideoInfo
}

func (c Contents) IsEmpty() bool { return len(c.Videos) == 0 }

type thumbnailEntry struct {
	URL string `json:"url"`
}

type singleVideoDoc struct {
	OriginalURL string            `json:"original_url"`
	Title       string            `json:"title"`
	Thumbnails  []thumbnailEntry  `json:"thumbnails"`
}

type playlistVideoDoc struct {
	URL        string           `json:"url"`
	Title      string           `json:"title"`
	Thumbnails []thumbnailEntry `json:"thumbnails"`
}

type playlistDoc struct {
	OriginalURL string              `json:"original_url"`
	Title       string              `json:"title"`
	Entries     []playlistVideoDoc  `json:"entries"`
	Thumbnails  []thumbnailEntry    `json:"thumbnails"`
}

type typeCheckDoc struct {
	Type string `json:"_type"`
}

func firstThumbnail(list []thumbnailEntry) string {
	if len(list) == 0 {
		return ""
	}
	return list[0].URL
}

// ParseContents dispatches on the external tool's "_type" field
// ("video" or "playlist").
func ParseContents(raw []byte) (Contents, error) {
	var check typeCheckDoc
	if err := json.Unmarshal(raw, &check); err != nil {
		return Contents{}, fmt.Errorf("parsing downloader output: %w", err)
	}

	switch check.Type {
	case "video":
		var v singleVideoDoc
		if err := json.Unmarshal(raw, &v); err != nil {
			return Contents{}, fmt.Errorf("parsing video entry: %w", err)
		}
		return Contents{
			Title:     v.Title,
			Thumbnail: firstThumbnail(v.Thumbnails),
			Videos: []VideoInfo{{
				URL:       v.OriginalURL,
				Title:     v.Title,
				Thumbnail: firstThumbnail(v.Thumbnails),
			}},
		}, nil
	case "playlist":
		var p playlistDoc
		if err := json.Unmarshal(raw, &p); err != nil {
			return Contents{}, fmt.Errorf("parsing playlist: %w", err)
		}
		videos := make([]VideoInfo, 0, len(p.Entries))
		for _, e := range p.Entries {
			videos = append(videos, VideoInfo{
				URL:       e.URL,
				Title:     e.Title,
				Thumbnail: firstThumbnail(e.Thumbnails),
			})
		}
		return Contents{
			Title:     p.Title,
			Thumbnail: firstThumbnail(p.Thumbnails),
			Videos:    videos,
		}, nil
	default:
		return Contents{}, fmt.Errorf("failed to parse downloader output: expected '_type' to be 'video' or 'playlist', got %q", check.Type)
	}
}
