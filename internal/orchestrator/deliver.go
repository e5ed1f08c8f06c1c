package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/sizing"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

var payloadKinds = map[string]domain.PayloadKind{
	".mp4":  domain.PayloadVideo,
	".mkv":  domain.PayloadVideo,
	".webm": domain.PayloadVideo,
	".mov":  domain.PayloadVideo,
	".mp3":  domain.PayloadAudio,
	".m4a":  domain.PayloadAudio,
	".opus": domain.PayloadAudio,
	".ogg":  domain.PayloadAudio,
	".flac": domain.PayloadAudio,
	".jpg":  domain.PayloadPhoto,
	".jpeg": domain.PayloadPhoto,
	".png":  domain.PayloadPhoto,
	".webp": domain.PayloadPhoto,
}

func payloadKind(path string) domain.PayloadKind {
	if k, ok := payloadKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return domain.PayloadDocument
}

// deliver sends every file of a successful attempt and returns the refs to
// cache. Oversize media is split first. When an archive chat is configured
// the archived copies are returned, else the requester's messages. Any
// failure returns an error and nothing is cached.
func (o *Orchestrator) deliver(ctx context.Context, t *task, s domain.Success) ([]domain.ArtifactRef, error) {
	files, err := artifactFiles(s.ArtifactPath)
	if err != nil {
		return nil, err
	}

	var refs []domain.ArtifactRef
	for _, f := range files {
		sent, err := o.deliverFile(ctx, t, f, s.Metadata)
		if err != nil {
			return nil, err
		}
		refs = append(refs, sent...)
	}

	return o.archive(ctx, t, refs), nil
}

func (o *Orchestrator) deliverFile(ctx context.Context, t *task, path string, meta domain.Metadata) ([]domain.ArtifactRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("artifact missing: %w", err)
	}

	kind := payloadKind(path)
	planner := t.splitter.Planner()

	if !planner.NeedsSplit(info.Size()) {
		ref, err := o.send(ctx, t, kind, path, info.Size(), caption(meta.Title, 0, 0), meta.Length())
		if err != nil {
			return nil, err
		}
		return []domain.ArtifactRef{ref}, nil
	}

	if kind != domain.PayloadVideo && kind != domain.PayloadAudio {
		return nil, fmt.Errorf("%w: %s is above the %s limit and cannot be split",
			sizing.ErrSizeExceeded, sizing.HumanSize(info.Size()), sizing.HumanSize(planner.Threshold))
	}

	parts, err := t.splitter.Split(ctx, path, info.Size(), meta.Length(), filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", sizing.HumanSize(info.Size()), err)
	}
	o.deps.Logger.Info(ctx, "Split oversize artifact", types.Fields{
		"size":      info.Size(),
		"threshold": planner.Threshold,
		"parts":     len(parts),
	})

	refs := make([]domain.ArtifactRef, 0, len(parts))
	for _, p := range parts {
		ref, err := o.send(ctx, t, kind, p.Path, p.Size, caption(meta.Title, p.Index, len(parts)), p.Length)
		if err != nil {
			return nil, fmt.Errorf("failed to deliver part %d/%d: %w", p.Index, len(parts), err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (o *Orchestrator) send(ctx context.Context, t *task, kind domain.PayloadKind, path string, size int64, text string, length time.Duration) (domain.ArtifactRef, error) {
	p := domain.Payload{Kind: kind, FilePath: path, Caption: text, Duration: length}

	if kind == domain.PayloadVideo {
		thumb := strings.TrimSuffix(path, filepath.Ext(path)) + ".thumb.jpg"
		at := time.Second
		if length > 0 && length < 2*at {
			at = length / 2
		}
		if err := o.deps.Media.Thumbnail(ctx, path, thumb, at); err != nil {
			o.deps.Logger.Debug(ctx, "Thumbnail failed, sending without", types.Fields{"error": err.Error()})
		} else {
			p.Thumbnail = thumb
		}
	}

	start := time.Now()
	ref, err := o.deps.Transport.Send(ctx, t.req.ChatID, p)
	o.deps.Metrics.RecordDuration("deliver", time.Since(start).Seconds())
	if err != nil {
		o.deps.Metrics.RecordError("deliver", string(kind))
		return domain.ArtifactRef{}, fmt.Errorf("failed to send %s: %w", kind, err)
	}
	o.deps.Metrics.RecordSuccess("deliver")
	o.deps.Metrics.RecordFileSize(string(kind), size)
	return ref, nil
}

// archive copies delivered messages to the archive chat. Archive failures
// fall back to caching the requester's messages.
func (o *Orchestrator) archive(ctx context.Context, t *task, refs []domain.ArtifactRef) []domain.ArtifactRef {
	chat := o.cfg.Transport.ArchiveChatID
	if chat == 0 || len(refs) == 0 {
		return refs
	}

	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.MessageID
	}
	archived, err := o.deps.Transport.Forward(ctx, chat, t.req.ChatID, ids)
	if err != nil || len(archived) != len(refs) {
		o.deps.Logger.Warn(ctx, "Archive forward failed, caching delivered messages", types.Fields{
			"archived": len(archived),
			"expected": len(refs),
		})
		return refs
	}
	return archived
}

// writeCache stores refs once every part of the item was delivered.
func (o *Orchestrator) writeCache(ctx context.Context, t *task, index int, meta domain.Metadata, refs []domain.ArtifactRef) {
	gate := cache.Gate{HasSubtitles: t.req.WantSubtitles}
	if o.deps.Classifier != nil {
		gate.Restricted = o.deps.Classifier.IsRestricted(ctx, t.req.URL, meta.Title, meta.Description)
	}

	var err error
	if index == 0 {
		err = o.deps.Cache.Put(ctx, t.key, refs, gate)
	} else {
		err = o.deps.Cache.PutIndex(ctx, t.key, index, refs, gate)
	}
	if err != nil {
		o.deps.Logger.Error(ctx, "Cache write failed", err, types.Fields{"cache_key": string(t.key), "index": index})
	}
}

func caption(title string, part, parts int) string {
	if parts <= 1 {
		return title
	}
	if title == "" {
		return fmt.Sprintf("Part %d/%d", part, parts)
	}
	return fmt.Sprintf("%s\nPart %d/%d", title, part, parts)
}

// artifactFiles expands a directory result into its media files, in name
// order. Hidden files and thumbnails are left out.
func artifactFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("artifact missing: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.Type().IsRegular() && !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ".thumb.jpg") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: fallback produced no files", domain.ErrNoContent)
	}
	sort.Strings(files)
	return files, nil
}
