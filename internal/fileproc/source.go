package fileproc

import (
	"context"

	"github.com/panbanda/winnow/pkg/source"
)

// MapSourceFiles reads each file from src and runs fn on its content in
// parallel. Read failures are reported like processing failures.
func MapSourceFiles[R any](
	ctx context.Context,
	files []string,
	src source.ContentSource,
	maxWorkers int,
	fn func(ctx context.Context, path string, content []byte) (R, error),
	onProgress ProgressFunc,
) ([]R, *ProcessingErrors) {
	return MapFiles(ctx, files, maxWorkers, func(ctx context.Context, path string) (R, error) {
		content, err := src.Read(path)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, path, content)
	}, onProgress)
}
