package lipsync

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/logger"
	"github.com/linuxmatters/mouthpiece/internal/observe"
	"github.com/linuxmatters/mouthpiece/internal/transcribe"
)

// Long-form defaults
const (
	DefaultMinGap    = 1.0    // seconds of pause that splits groups
	defaultLongText  = "音声解析" // text for whole-clip analysis without a transcript
	gapFillThreshold = 0.1    // gaps longer than this become silence frames
)

// group is a run of transcript segments analysed together.
type group struct {
	Start, End float64
	Text       string
}

// AnalyzeLong builds a timeline for a long recording. The transcript is
// split into groups at pauses of at least minGap seconds; each group is
// analysed against its slice of audio and the results are stitched back
// together with silence between them. Without a usable transcript the
// whole clip is analysed in one pass.
func (e *Engine) AnalyzeLong(ctx context.Context, wavPath, text string, minGap float64) (*Data, error) {
	ctx, span := observe.StartSpan(ctx, "lipsync.AnalyzeLong",
		trace.WithAttributes(attribute.String("wav", wavPath)))
	defer span.End()

	buf, _, err := audio.ReadWAV(wavPath)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	mono := audio.NewMono(buf.Mono(), buf.SampleRate)
	total := mono.Duration()
	logger.Infof("long-form lip-sync: %s (%.1fs)", wavPath, total)

	if e.transcriber == nil {
		return e.wholeClip(ctx, mono, text, "no_transcriber", "transcriber unavailable")
	}
	tr, err := e.transcriber.Transcribe(ctx, wavPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warnf("transcription failed, analysing whole clip: %v", err)
		return e.wholeClip(ctx, mono, text, "transcribe_error", fmt.Sprintf("transcription failed: %v", err))
	}
	if len(tr.Segments) == 0 {
		logger.Warnf("transcription returned no segments, analysing whole clip")
		return e.wholeClip(ctx, mono, text, "no_segments", "no transcript segments")
	}

	groups := groupSegments(tr.Segments, minGap)
	span.SetAttributes(attribute.Int("groups", len(groups)))
	logger.Infof("%d segments in %d groups", len(tr.Segments), len(groups))

	results := make([]*Data, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.analyzeGroup(gctx, i, grp, mono)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var frames []Frame
	fellBack := 0
	for i, d := range results {
		if d == nil {
			continue
		}
		if d.Source == SourceFallback {
			fellBack++
		}
		for _, f := range d.Frames {
			f.Timestamp += groups[i].Start
			if f.Timestamp >= total {
				break
			}
			f.Duration = min(f.Duration, total-f.Timestamp)
			frames = append(frames, f)
		}
	}
	if len(frames) == 0 {
		err := fmt.Errorf("%s: %w", wavPath, ErrNoFrames)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	frames = fillGaps(frames, total)

	if text == "" {
		texts := make([]string, len(groups))
		for i, grp := range groups {
			texts[i] = grp.Text
		}
		text = strings.Join(texts, " ")
	}

	data := &Data{
		Text:          text,
		TotalDuration: total,
		Frames:        frames,
		SampleRate:    mono.SampleRate,
		Source:        SourcePhonemizer,
	}
	if fellBack > 0 {
		data.Degraded = fmt.Sprintf("%d of %d groups used the fallback", fellBack, len(groups))
		if fellBack == len(groups) {
			data.Source = SourceFallback
		}
	}
	return data, nil
}

// analyzeGroup runs one group against its slice of audio. A failed group
// is logged and skipped.
func (e *Engine) analyzeGroup(ctx context.Context, i int, grp group, mono *audio.Buffer) *Data {
	ctx, span := observe.StartSpan(ctx, "lipsync.group", trace.WithAttributes(
		attribute.Int("index", i),
		attribute.Float64("start", grp.Start),
		attribute.Float64("end", grp.End),
	))
	defer span.End()

	sr := mono.SampleRate
	n := mono.Len()
	start := min(max(0, int(grp.Start*float64(sr))), n)
	end := min(max(start, int(grp.End*float64(sr))), n)
	if start == end {
		logger.Warnf("group %d (%.2fs-%.2fs) skipped: outside the audio", i+1, grp.Start, grp.End)
		span.SetStatus(codes.Error, "outside the audio")
		return nil
	}

	d, err := e.analyze(ctx, grp.Text, mono.Slice(start, end))
	if err != nil {
		logger.Warnf("group %d (%.2fs-%.2fs) skipped: %v", i+1, grp.Start, grp.End, err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}
	return d
}

// wholeClip analyses the entire recording in one pass.
func (e *Engine) wholeClip(ctx context.Context, mono *audio.Buffer, text, reason, why string) (*Data, error) {
	e.metrics.RecordLipSyncFallback(ctx, reason)
	if text == "" {
		text = defaultLongText
	}
	d, err := e.analyze(ctx, text, mono)
	if err != nil {
		return nil, err
	}
	d.WholeClip = true
	if d.Degraded != "" {
		why += "; " + d.Degraded
	}
	d.Degraded = why
	return d, nil
}

// groupSegments merges segments separated by less than minGap seconds.
func groupSegments(segments []transcribe.Segment, minGap float64) []group {
	if len(segments) == 0 {
		return nil
	}
	groups := []group{{Start: segments[0].Start, End: segments[0].End, Text: segments[0].Text}}
	for i := 1; i < len(segments); i++ {
		cur := &groups[len(groups)-1]
		seg := segments[i]
		if gap := seg.Start - segments[i-1].End; gap >= minGap {
			logger.Debugf("group split at %.2fs after %.2fs pause", seg.Start, gap)
			groups = append(groups, group{Start: seg.Start, End: seg.End, Text: seg.Text})
			continue
		}
		cur.End = seg.End
		cur.Text += seg.Text
	}
	return groups
}

// fillGaps inserts silence frames at the start, between frames and at the
// end wherever more than gapFillThreshold seconds are uncovered.
func fillGaps(frames []Frame, total float64) []Frame {
	if len(frames) == 0 {
		return nil
	}
	filled := make([]Frame, 0, len(frames)+2)
	silence := func(start, d float64) Frame {
		return Frame{Timestamp: start, Vowel: "sil", Duration: d}
	}

	if frames[0].Timestamp > gapFillThreshold {
		filled = append(filled, silence(0, frames[0].Timestamp))
	}
	for i, f := range frames {
		filled = append(filled, f)
		if i == len(frames)-1 {
			break
		}
		if gap := frames[i+1].Timestamp - f.End(); gap > gapFillThreshold {
			filled = append(filled, silence(f.End(), gap))
		}
	}
	if last := frames[len(frames)-1].End(); last < total-gapFillThreshold {
		filled = append(filled, silence(last, total-last))
	}
	return filled
}
