package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestParseSilenceEvents(t *testing.T) {
	now := time.Now()

	ev, ok := parseSilenceEvent("[silencedetect @ 0x5591a8c0] silence_start: 4.149", now)
	if !ok || !ev.Silence {
		t.Fatalf("silence_start not recognized: %+v ok=%v", ev, ok)
	}
	if ev.TS != 4.149 {
		t.Fatalf("unexpected timestamp: %v", ev.TS)
	}

	ev, ok = parseSilenceEvent("[silencedetect @ 0x5591a8c0] silence_end: 6.149 | silence_duration: 2.000", now)
	if !ok || ev.Silence {
		t.Fatalf("silence_end not recognized: %+v ok=%v", ev, ok)
	}
	if ev.TS != 6.149 {
		t.Fatalf("unexpected timestamp: %v", ev.TS)
	}
	if !ev.At.Equal(now) {
		t.Fatalf("event time not preserved")
	}
}

func TestParseSilenceEventIgnoresOtherLines(t *testing.T) {
	lines := []string{
		"Input #0, pulse, from 'default':",
		"  Stream #0:0: Audio: pcm_s16le, 48000 Hz, stereo, s16, 1536 kb/s",
		"Output #0, wav, to 'out.wav':",
		"size=     256KiB time=00:00:08.19 bitrate= 256.1kbits/s speed=   1x",
		"",
	}
	for _, line := range lines {
		if _, ok := parseSilenceEvent(line, time.Now()); ok {
			t.Fatalf("line should not parse as silence event: %q", line)
		}
	}
}

func TestCaptureArgs(t *testing.T) {
	args, err := captureArgs(CaptureConfig{
		Device:     DefaultDevice(),
		OutputPath: "/tmp/out.wav",
		NoiseDB:    40,
		ExtraArgs:  []string{"-threads", "2"},
	})
	if err != nil {
		t.Fatalf("captureArgs: %v", err)
	}

	joined := " " + strings.Join(args, " ") + " "
	for _, want := range []string{
		" -acodec pcm_s16le ",
		" -ar 16000 ",
		" -ac 1 ",
		" -af silencedetect=n=-40dB:d=0.5 ",
		" -threads 2 ",
		" -y /tmp/out.wav ",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "/tmp/out.wav" {
		t.Fatalf("output path must be the final argument: %v", args)
	}
}

// A user -af must not become a second filter option: ffmpeg would honor
// only the last one and silence detection would quietly go dead, leaving
// nothing to ever stop the recording.
func TestCaptureArgsFoldsUserFilters(t *testing.T) {
	args, err := captureArgs(CaptureConfig{
		Device:     DefaultDevice(),
		OutputPath: "/tmp/out.wav",
		NoiseDB:    40,
		ExtraArgs:  []string{"-af", "highpass=f=200", "-threads", "2"},
	})
	if err != nil {
		t.Fatalf("captureArgs: %v", err)
	}

	count := 0
	chain := ""
	for i, a := range args {
		if a == "-af" || a == "-filter:a" {
			count++
			chain = args[i+1]
		}
	}
	if count != 1 {
		t.Fatalf("want exactly one -af, got %d: %v", count, args)
	}
	if chain != "highpass=f=200,silencedetect=n=-40dB:d=0.5" {
		t.Fatalf("user filter not folded ahead of silencedetect: %q", chain)
	}
	joined := " " + strings.Join(args, " ") + " "
	if !strings.Contains(joined, " -threads 2 ") {
		t.Fatalf("non-filter extras dropped: %v", args)
	}
}

func TestCaptureArgsFoldsFilterAForm(t *testing.T) {
	args, err := captureArgs(CaptureConfig{
		Device:     DefaultDevice(),
		OutputPath: "/tmp/out.wav",
		NoiseDB:    30,
		ExtraArgs:  []string{"-filter:a", "highpass=f=200", "-af", "volume=2"},
	})
	if err != nil {
		t.Fatalf("captureArgs: %v", err)
	}

	want := "highpass=f=200,volume=2,silencedetect=n=-30dB:d=0.5"
	joined := " " + strings.Join(args, " ") + " "
	if !strings.Contains(joined, " -af "+want+" ") {
		t.Fatalf("filters not folded in order: %v", args)
	}
	if strings.Contains(joined, " -filter:a ") {
		t.Fatalf("-filter:a should not survive folding: %v", args)
	}
}

func TestCaptureArgsRejectsDanglingFilterFlag(t *testing.T) {
	_, err := captureArgs(CaptureConfig{
		Device:     DefaultDevice(),
		OutputPath: "/tmp/out.wav",
		NoiseDB:    40,
		ExtraArgs:  []string{"-af"},
	})
	if err == nil {
		t.Fatal("captureArgs accepted -af without a filter")
	}
}
