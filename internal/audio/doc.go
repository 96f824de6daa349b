// Package audio adapts the local audio devices: microphone capture through
// ffmpeg and scheduled playback through ffplay.
package audio
