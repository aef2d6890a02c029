package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Concatenate writes parts, in order, into dst.
func Concatenate(ctx context.Context, dst string, parts []string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := appendFile(out, p); err != nil {
			return err
		}
	}
	return nil
}

func appendFile(w io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("copy %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return appendFile(out, src)
}

// Remuxer wraps a raw bitstream into a container without re-encoding.
type Remuxer struct {
	Runner Runner
	Paths  Paths
}

// Remux copies the video stream of in into out at the given frame rate.
func (r *Remuxer) Remux(ctx context.Context, in, out string, framerate int) error {
	_, err := r.Runner.Run(ctx, r.Paths.ffmpeg(),
		"-hide_banner", "-y",
		"-r", strconv.Itoa(framerate),
		"-i", in,
		"-c:v", "copy",
		out,
	)
	if err != nil {
		return fmt.Errorf("remux %s: %w", in, err)
	}
	return nil
}

// RemoveTileDirectory deletes a tile output directory and everything in it.
// A missing directory is not an error.
func RemoveTileDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
