package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"file-uploader/internal/logging"
)

// MaxFrameRate is the highest frame rate written to output files.
const MaxFrameRate = 30.0

// OutputSuffix is appended to the input stem to name transcoded files.
const OutputSuffix = "_nice.mp4"

const (
	defaultProbeTimeout = 30 * time.Second
	maxErrorOutput      = 4096
)

var (
	// ErrNotAVideo is returned when the input has no video stream.
	ErrNotAVideo = errors.New("input is not a video")
	// ErrProbeFailed is returned when ffprobe could not be run.
	ErrProbeFailed = errors.New("probe failed")
	// ErrTranscodeFailed is returned when ffmpeg exits nonzero or cannot run.
	ErrTranscodeFailed = errors.New("transcode failed")
)

// ProbeError reports an ffprobe invocation that did not complete.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ffprobe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() []error {
	return []error{ErrProbeFailed, e.Err}
}

// FailedError carries the diagnostics of a failed ffmpeg run.
type FailedError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *FailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ffmpeg failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, lastLine(e.Output))
}

func (e *FailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTranscodeFailed, e.Err}
	}
	return []error{ErrTranscodeFailed}
}

// Options describes a single transcode.
type Options struct {
	InputPath            string
	OutputPath           string
	HardwareAcceleration bool
}

// VideoInfo holds the stream characteristics used to pick encoder settings.
type VideoInfo struct {
	Codec       string  `json:"codec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   float64 `json:"frameRate"`
	BitDepth    int     `json:"bitDepth"`
	PixelFormat string  `json:"pixelFormat"`
}

// NeedsToneMapping reports whether the source is HDR-range (10-bit or more).
func (v VideoInfo) NeedsToneMapping() bool {
	return v.BitDepth >= 10
}

// OutputFrameRate returns min(source, MaxFrameRate) and whether that is a
// reduction. An unknown source rate is left alone.
func (v VideoInfo) OutputFrameRate() (float64, bool) {
	if v.FrameRate > MaxFrameRate {
		return MaxFrameRate, true
	}
	return v.FrameRate, false
}

// Config configures a Transcoder.
type Config struct {
	FFmpegPath   string
	FFprobePath  string
	ProbeTimeout time.Duration
	Runner       Runner
}

// Transcoder runs probe and encode processes.
type Transcoder struct {
	ffmpeg       string
	ffprobe      string
	probeTimeout time.Duration
	runner       Runner

	processes map[string]context.CancelFunc
	processMu sync.Mutex
}

// New creates a Transcoder. Zero values in cfg fall back to "ffmpeg",
// "ffprobe", a 30s probe timeout and the go-execute runner.
func New(cfg Config) *Transcoder {
	t := &Transcoder{
		ffmpeg:       cfg.FFmpegPath,
		ffprobe:      cfg.FFprobePath,
		probeTimeout: cfg.ProbeTimeout,
		runner:       cfg.Runner,
		processes:    make(map[string]context.CancelFunc),
	}
	if t.ffmpeg == "" {
		t.ffmpeg = "ffmpeg"
	}
	if t.ffprobe == "" {
		t.ffprobe = "ffprobe"
	}
	if t.probeTimeout <= 0 {
		t.probeTimeout = defaultProbeTimeout
	}
	if t.runner == nil {
		t.runner = ExecRunner{}
	}
	return t
}

// OutputName derives the transcoded filename: extension stripped, suffix
// appended.
func OutputName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + OutputSuffix
}

// Transcode probes opts.InputPath and encodes it to opts.OutputPath.
// It returns ErrNotAVideo when there is nothing to encode, a *ProbeError when
// ffprobe could not run, and a *FailedError when ffmpeg fails. The input is
// never removed.
func (t *Transcoder) Transcode(ctx context.Context, opts Options) error {
	ctx, release := t.track(ctx, opts.InputPath)
	defer release()

	hasVideo, err := t.HasVideoStream(ctx, opts.InputPath)
	if err != nil {
		return err
	}
	if !hasVideo {
		return fmt.Errorf("%s: %w", filepath.Base(opts.InputPath), ErrNotAVideo)
	}

	info, err := t.GetVideoInfo(ctx, opts.InputPath)
	if err != nil {
		return err
	}

	args := BuildArgs(opts, *info)
	logging.Debug("Spawn: %s %s", t.ffmpeg, strings.Join(args, " "))

	start := time.Now()
	res, err := t.runner.Run(ctx, t.ffmpeg, args...)
	if err != nil {
		return &FailedError{ExitCode: res.ExitCode, Output: tail(res.Stderr), Err: err}
	}
	if res.ExitCode != 0 {
		logging.Error("FFmpeg stderr: %s", tail(res.Stderr))
		return &FailedError{ExitCode: res.ExitCode, Output: tail(res.Stderr)}
	}

	logging.Info("Transcoded %s in %v (%dx%d, %.2f fps, %d-bit)",
		filepath.Base(opts.InputPath), time.Since(start).Round(time.Millisecond),
		info.Width, info.Height, info.FrameRate, info.BitDepth)
	return nil
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	PixFmt           string `json:"pix_fmt"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	AvgFrameRate     string `json:"avg_frame_rate"`
	RFrameRate       string `json:"r_frame_rate"`
	Disposition      struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// probe runs ffprobe with the given entries. ok=false means ffprobe ran but
// could not read the input as media at all.
func (t *Transcoder) probe(ctx context.Context, path string, args ...string) (*probeOutput, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	full := append([]string{"-v", "error"}, args...)
	full = append(full, "-of", "json", path)

	res, err := t.runner.Run(ctx, t.ffprobe, full...)
	if err != nil {
		return nil, false, &ProbeError{Path: path, Err: err}
	}
	if res.ExitCode != 0 {
		logging.Debug("ffprobe rejected %s (exit %d): %s", path, res.ExitCode, lastLine(res.Stderr))
		return nil, false, nil
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, false, &ProbeError{Path: path, Err: fmt.Errorf("decode output: %w", err)}
	}
	return &out, true, nil
}

// HasVideoStream reports whether path contains at least one real video
// stream. Cover art (attached pictures) does not count.
func (t *Transcoder) HasVideoStream(ctx context.Context, path string) (bool, error) {
	out, ok, err := t.probe(ctx, path,
		"-select_streams", "v",
		"-show_entries", "stream=codec_type:stream_disposition=attached_pic",
	)
	if err != nil || !ok {
		return false, err
	}

	for _, s := range out.Streams {
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 {
			return true, nil
		}
	}
	return false, nil
}

// GetVideoInfo reads the first video stream's characteristics.
func (t *Transcoder) GetVideoInfo(ctx context.Context, path string) (*VideoInfo, error) {
	out, ok, err := t.probe(ctx, path,
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,pix_fmt,bits_per_raw_sample,avg_frame_rate,r_frame_rate",
	)
	if err != nil {
		return nil, err
	}
	if !ok || len(out.Streams) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotAVideo)
	}

	s := out.Streams[0]
	info := &VideoInfo{
		Codec:       s.CodecName,
		Width:       s.Width,
		Height:      s.Height,
		PixelFormat: s.PixFmt,
		FrameRate:   parseFrameRate(s.AvgFrameRate),
		BitDepth:    bitDepth(s.BitsPerRawSample, s.PixFmt),
	}
	if info.FrameRate == 0 {
		info.FrameRate = parseFrameRate(s.RFrameRate)
	}
	return info, nil
}

// parseFrameRate parses ffprobe rationals such as "30000/1001".
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// bitDepth prefers bits_per_raw_sample and falls back to the pixel format
// name (yuv420p10le, p010le, ...).
func bitDepth(raw, pixFmt string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
		return n
	}
	f := strings.ToLower(pixFmt)
	switch {
	case strings.Contains(f, "p16"), strings.Contains(f, "16le"), strings.Contains(f, "16be"):
		return 16
	case strings.Contains(f, "p12"), strings.Contains(f, "12le"), strings.Contains(f, "12be"):
		return 12
	case strings.Contains(f, "p10"), strings.Contains(f, "10le"), strings.Contains(f, "10be"), f == "p010le":
		return 10
	}
	return 8
}

const (
	cudaToneMapFilter = "tonemap_cuda=format=yuv420p:tonemap=hable:primaries=bt709:transfer=bt709:matrix=bt709"
	cudaFormatFilter  = "scale_cuda=format=yuv420p"
	cpuToneMapFilter  = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709,tonemap=tonemap=hable:desat=0,zscale=t=bt709:m=bt709:r=tv,format=yuv420p"
)

// BuildArgs returns the ffmpeg argument list for opts and the probed info.
// The same inputs always produce the same arguments.
func BuildArgs(opts Options, info VideoInfo) []string {
	args := []string{"-y"}

	// Hardware decode flags must precede -i.
	if opts.HardwareAcceleration {
		args = append(args, "-hwaccel", "cuda", "-hwaccel_output_format", "cuda")
	}
	args = append(args, "-i", opts.InputPath)

	if opts.HardwareAcceleration {
		args = append(args,
			"-c:v", "h264_nvenc",
			"-preset", "p5",
			"-rc", "vbr",
			"-cq", "22",
			"-b:v", "0",
			"-multipass", "qres",
		)
		if info.NeedsToneMapping() {
			args = append(args, "-vf", cudaToneMapFilter)
		} else {
			args = append(args, "-vf", cudaFormatFilter)
		}
	} else {
		args = append(args,
			"-c:v", "libx264",
			"-preset", "fast",
			"-crf", "23",
		)
		if info.NeedsToneMapping() {
			args = append(args, "-vf", cpuToneMapFilter)
		}
		args = append(args, "-pix_fmt", "yuv420p")
	}

	if fps, reduced := info.OutputFrameRate(); reduced {
		args = append(args, "-r", strconv.FormatFloat(fps, 'f', -1, 64))
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "mp4",
		opts.OutputPath,
	)
	return args
}

// track derives a cancellable context for one transcode so Cleanup can stop it.
func (t *Transcoder) track(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	t.processMu.Lock()
	t.processes[key] = cancel
	t.processMu.Unlock()

	return ctx, func() {
		t.processMu.Lock()
		delete(t.processes, key)
		t.processMu.Unlock()
		cancel()
	}
}

// Active returns the number of transcodes currently running.
func (t *Transcoder) Active() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup kills every running probe and encode process.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cancel := range t.processes {
		logging.Info("Killing transcoding process for: %s", path)
		cancel()
	}
}

func tail(s string) string {
	if len(s) <= maxErrorOutput {
		return s
	}
	return s[len(s)-maxErrorOutput:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i != -1 {
		return s[i+1:]
	}
	return s
}
