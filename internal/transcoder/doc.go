// Package transcoder converts downloaded short-video media into files that
// legacy players can decode, using FFmpeg as a one-shot external process.
//
// Output is H.264 baseline profile, level 3.0, yuv420p, with AAC audio and the
// moov atom moved to the front (+faststart) so playback can begin before the
// whole file is transferred.
//
// Every invocation is bounded by a timeout and tracked so that [Transcoder.Cleanup]
// can kill in-flight processes during shutdown. FFmpeg must be installed and
// available in PATH, or its location passed to [New].
package transcoder
