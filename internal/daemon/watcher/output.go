package watcher

import (
	"context"
	"io"

	"github.com/hpcloud/tail"
	"github.com/sirupsen/logrus"
)

// FollowOutput streams the lines of a session's captured output file,
// starting from the beginning and waiting for the file to appear. The
// returned channel is closed once ctx is done.
func FollowOutput(ctx context.Context, path string, logger *logrus.Entry) (<-chan string, error) {
	return FollowFile(ctx, path, io.SeekStart, logger)
}

// FollowFile streams the lines appended to path, starting at its beginning
// or end as whence says.
func FollowFile(ctx context.Context, path string, whence int, logger *logrus.Entry) (<-chan string, error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer t.Cleanup()
		defer func() { _ = t.Stop() }()

		for {
			select {
			case line, ok := <-t.Lines:
				if !ok {
					return
				}
				if line.Err != nil {
					logger.WithError(line.Err).WithField("path", path).Debug("Error reading followed file")
					continue
				}
				select {
				case out <- line.Text:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
