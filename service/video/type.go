package video

import "context"

// IService moves clips between mp4 files and frame directories.
type IService interface {
	// ExtractFrames decodes src into dstDir as 00000.jpg, 00001.jpg, ... and
	// returns the frame file names in order.
	ExtractFrames(ctx context.Context, src, dstDir string) ([]string, error)
	// AssembleMP4 encodes the frames of dir, in lexicographic order, into out.
	AssembleMP4(ctx context.Context, dir, out string, fps float64) error
	// Transcode re-encodes every .mp4 under root into a .mov at the same
	// relative path under outRoot. It returns the number of files written.
	Transcode(ctx context.Context, root, outRoot string) (int, error)
}
