package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresuchdata/visionbatch/internal/analysis"
	"github.com/andresuchdata/visionbatch/internal/storage"
)

// processObject runs fetch (inline mode only), analyze, write and upload for
// one object and returns the published result key.
func (r *Runner) processObject(ctx context.Context, run *Run, obj storage.ObjectInfo, name string) (string, error) {
	log := r.log.With().Str("run_uid", run.UID).Str("key", obj.Key).Logger()

	ref := analysis.ImageRef{Bucket: r.store.Bucket(), Key: obj.Key}
	if r.cfg.InlineImages {
		data, err := r.fetch(ctx, obj)
		if err != nil {
			return "", &StageError{Stage: StageFetch, Key: obj.Key, Err: err}
		}
		ref.Bytes = data
	}

	res, err := analysis.Analyze(ctx, r.detector, ref)
	if err != nil {
		return "", &StageError{Stage: StageAnalyze, Key: obj.Key, Err: err}
	}

	path, err := r.writer.Write(name, res)
	if err != nil {
		return "", &StageError{Stage: StageWrite, Key: obj.Key, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return "", &StageError{Stage: StageUpload, Key: obj.Key, Err: err}
	}
	key := r.writer.Key(name)
	if err := r.store.UploadFile(ctx, path, key); err != nil {
		return "", &StageError{Stage: StageUpload, Key: obj.Key, Err: err}
	}
	log.Info().Str("result_key", key).Msg("result published")

	if r.notifier != nil {
		event := ResultEvent{
			RunUID:      run.UID,
			Bucket:      r.store.Bucket(),
			ObjectKey:   obj.Key,
			ResultKey:   key,
			PublishedAt: r.now(),
		}
		if err := r.notifier.ResultPublished(ctx, event); err != nil {
			log.Warn().Err(err).Msg("failed to publish result notification")
		}
	}

	if !r.cfg.KeepLocal {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove local result file")
		}
	}

	return key, nil
}

func (r *Runner) fetch(ctx context.Context, obj storage.ObjectInfo) ([]byte, error) {
	if obj.Size > analysis.MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", analysis.ErrImageTooLarge, obj.Size)
	}
	data, err := r.store.ReadObject(ctx, obj.Key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("object is empty")
	}
	return data, nil
}
