package config

import "fmt"

// CommandTemplate is an argv template; "{{...}}" tokens are substituted
// by the renderers below.
type CommandTemplate struct {
	Args []string `yaml:"args" json:"args"`
}

// DownloadFormat names one selectable output format and the extra argv
// fragment the downloader needs to produce it.
type DownloadFormat struct {
	ID      string   `yaml:"id" json:"id"`
	Display string   `yaml:"display" json:"display"`
	Ext     string   `yaml:"ext" json:"ext"`
	Args    []string `yaml:"args" json:"args"`
}

// ToolConfig configures the external downloader binary: how to invoke
// it for URL expansion and for the actual download/convert, and which
// output formats are offered.
type ToolConfig struct {
	CommandFetchURL CommandTemplate  `yaml:"command_fetch_url" json:"command_fetch_url"`
	CommandDownload CommandTemplate  `yaml:"command_download" json:"command_download"`
	Formats         []DownloadFormat `yaml:"formats" json:"formats"`
}

// DefaultToolConfig mirrors ytdlp.yaml's baked-in defaults: yt-dlp
// invoked for dump-single-json info mode, and for download+remux.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		CommandFetchURL: CommandTemplate{
			Args: []string{"--dump-single-json", "--flat-playlist", "--no-warnings", "{{source_url}}"},
		},
		CommandDownload: CommandTemplate{
			Args: []string{"-o", "{{destination_file}}", "{{format_args}}", "{{source_url}}"},
		},
		Formats: []DownloadFormat{
			{ID: "mp4", Display: "Video (mp4)", Ext: "mp4", Args: []string{"-f", "bv*+ba/b", "--remux-video", "mp4"}},
			{ID: "mp3", Display: "Audio (mp3)", Ext: "mp3", Args: []string{"-f", "ba/b", "-x", "--audio-format", "mp3"}},
		},
	}
}

// CheckValidity: ToolConfig has no hardcoded caps to reject, matching
// YtdlpConfig::check_validity's unconditional true.
func (c ToolConfig) CheckValidity() error { return nil }

// GetFormat looks up a format by id.
func (c ToolConfig) GetFormat(id string) (DownloadFormat, error) {
	for _, f := range c.Formats {
		if f.ID == id {
			return f, nil
		}
	}
	return DownloadFormat{}, fmt.Errorf("unknown format: %s", id)
}

// RenderFetchURLCommand substitutes {{source_url}} into
// command_fetch_url.args.
func (c ToolConfig) RenderFetchURLCommand(sourceURL string) []string {
	out := make([]string, 0, len(c.CommandFetchURL.Args))
	for _, a := range c.CommandFetchURL.Args {
		if a == "{{source_url}}" {
			out = append(out, sourceURL)
		} else {
			out = append(out, a)
		}
	}
	return out
}

// RenderDownloadCommand substitutes {{source_url}}, {{format_args}}
// (which expands to zero or more argv entries) and
// {{destination_file}} into command_download.args.
func (c ToolConfig) RenderDownloadCommand(sourceURL string, format DownloadFormat, destinationFile string) []string {
	out := make([]string, 0, len(c.CommandDownload.Args)+len(format.Args))
	for _, a := range c.CommandDownload.Args {
		switch a {
		case "{{source_url}}":
			out = append(out, sourceURL)
		case "{{format_args}}":
			out = append(out, format.Args...)
		case "{{destination_file}}":
			out = append(out, destinationFile)
		default:
			out = append(out, a)
		}
	}
	return out
}
