// Package render turns one group of image/audio pairs into one MP4.
//
// Each pair becomes a segment: the still image is decoded, scaled to fit the
// target resolution and letterboxed onto a solid canvas, then encoded by
// ffmpeg for exactly the duration ffprobe reports for the audio clip. The
// segments share codec parameters so they are joined with the concat demuxer
// by stream copy. All intermediate files live in a per-group scratch
// directory; the finished file is moved into the output folder only once it
// is complete, so a failed render never leaves a partial MP4 behind.
package render
