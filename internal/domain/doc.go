// Package domain holds the request, metadata and artifact types shared by the
// engine components, the AttemptResult union and the ports implemented by
// the yt-dlp, gallery-dl, ffmpeg and chat transport adapters.
package domain
