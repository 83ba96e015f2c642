package main

import "runtime"

// downloaderBinaryName is the external tool this process shells out
// to: yt-dlp.exe on Windows, yt-dlp everywhere else.
func downloaderBinaryName() string {
	if runtime.GOOS == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}
