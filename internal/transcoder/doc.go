// Package transcoder re-encodes uploaded videos into an H.264/AAC MP4 that
// Discord and browsers play inline.
//
// It shells out to ffprobe to decide whether the input has a video stream
// and to read its bit depth, frame rate and dimensions, then runs a single
// ffmpeg process with a fully deterministic argument list (see BuildArgs).
// FFmpeg and FFprobe must be on PATH, or configured explicitly.
package transcoder
