package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/linuxmatters/mouthpiece/internal/audio"
	"github.com/linuxmatters/mouthpiece/internal/cli"
	"github.com/linuxmatters/mouthpiece/internal/realtime"
)

// RealtimeCmd feeds a WAV file through the streaming vowel estimator as if
// it were live input.
type RealtimeCmd struct {
	WAV   string `arg:"" name:"wav" help:"Speech to stream" type:"existingfile"`
	Chunk int    `default:"512" help:"Samples per pushed chunk"`
	Quiet bool   `short:"q" help:"Print only the summary"`
}

func (c *RealtimeCmd) Run(a *app) error {
	if c.Chunk <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunk)
	}
	buf, _, err := audio.ReadWAV(c.WAV)
	if err != nil {
		return err
	}
	mono := buf.Mono()

	cfg := a.cfg.Realtime
	cfg.SampleRate = buf.SampleRate
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = realtime.DefaultQueueSize
	}
	p := realtime.New(cfg)

	var (
		mu     sync.Mutex
		counts = map[string]int{}
		frames int
	)
	p.SetFrameCallback(func(realtime.FrameInfo) {
		mu.Lock()
		frames++
		mu.Unlock()
	})
	p.SetVowelCallback(func(r realtime.Result) {
		mu.Lock()
		counts[r.Vowel]++
		mu.Unlock()
		if !c.Quiet {
			fmt.Printf("%7.2fs  %-3s conf %.2f  F1 %4.0f  F2 %4.0f\n", r.Timestamp, r.Vowel, r.Confidence, r.F1, r.F2)
		}
	})

	p.Start(a.ctx)
	start := time.Now()
	for off := 0; off < len(mono); off += c.Chunk {
		// Wait for room rather than dropping, since the file is not live.
		for p.Stats().QueueSize >= cfg.QueueSize {
			select {
			case <-a.ctx.Done():
				_ = p.Stop()
				return a.ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
		end := min(off+c.Chunk, len(mono))
		p.PushAt(mono[off:end], float64(off)/float64(buf.SampleRate))
	}
	for p.Stats().QueueSize > 0 && a.ctx.Err() == nil {
		time.Sleep(time.Millisecond)
	}
	// The last dequeued chunk may still be in analysis.
	time.Sleep(10 * time.Millisecond)
	stats := p.Stats()
	if err := p.Stop(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	w := os.Stdout
	fmt.Fprintln(w)
	cli.PrintKeyValue(w, "Session", stats.Session)
	cli.PrintKeyValue(w, "Audio", fmt.Sprintf("%.2fs @ %d Hz", buf.Duration(), buf.SampleRate))
	cli.PrintKeyValue(w, "Chunks", frames)
	cli.PrintKeyValue(w, "Elapsed", time.Since(start).Round(time.Millisecond))
	for _, v := range []string{"a", "i", "u", "e", "o", "n", "sil"} {
		if n := counts[v]; n > 0 {
			cli.PrintKeyValue(w, "Vowel "+v, n)
		}
	}
	return nil
}
