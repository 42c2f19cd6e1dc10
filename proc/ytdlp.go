package proc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leeineian/musicbot/sys"
	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	"golang.org/x/time/rate"
)

type YtdlpOptions struct {
	CacheDir      string
	YoutubePrefix string
	YTMusicPrefix string
	// Requests per second against the extraction backend.
	Rate  float64
	Burst int
}

// YtdlpResolver resolves references with yt-dlp. Free text is searched on
// YouTube, or on YouTube Music when it starts with the YouTube Music prefix.
type YtdlpResolver struct {
	opts    YtdlpOptions
	limiter *rate.Limiter
}

func NewYtdlpResolver(opts YtdlpOptions) *YtdlpResolver {
	if opts.CacheDir == "" {
		opts.CacheDir = ".tracks"
	}
	if opts.YoutubePrefix == "" {
		opts.YoutubePrefix = "[YT]"
	}
	if opts.YTMusicPrefix == "" {
		opts.YTMusicPrefix = "[YTM]"
	}
	if opts.Rate <= 0 {
		opts.Rate = 2
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &YtdlpResolver{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
	}
}

const (
	ytdlpFlatTemplate = "%(extractor)s\t%(playlist_id)s\t%(url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(webpage_url)s"
	ytdlpFullTemplate = "%(url)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(webpage_url)s"
	ytdlpDownTemplate = "after_move:%(filepath)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(webpage_url)s"
)

// target maps a user reference to a yt-dlp argument.
func (r *YtdlpResolver) target(reference string) (string, bool) {
	ref := strings.TrimSpace(strings.Trim(strings.TrimSpace(reference), "<>"))
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, false
	}
	upper := strings.ToUpper(ref)
	if strings.HasPrefix(upper, strings.ToUpper(r.opts.YoutubePrefix)) {
		return "ytsearch1:" + strings.TrimSpace(ref[len(r.opts.YoutubePrefix):]), true
	}
	if strings.HasPrefix(upper, strings.ToUpper(r.opts.YTMusicPrefix)) {
		return "ytmsearch1:" + strings.TrimSpace(ref[len(r.opts.YTMusicPrefix):]), true
	}
	return "ytsearch1:" + ref, true
}

func (r *YtdlpResolver) wait(ctx context.Context) error {
	rsv := r.limiter.Reserve()
	if d := rsv.Delay(); d > time.Second {
		sys.LogResolver(sys.MsgResolverRateWait, d.Round(time.Millisecond))
	}
	select {
	case <-time.After(rsv.Delay()):
		return nil
	case <-ctx.Done():
		rsv.Cancel()
		return ctx.Err()
	}
}

func (r *YtdlpResolver) Resolve(ctx context.Context, reference string, opts ResolveOptions) (*Resolution, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	target, search := r.target(reference)
	if target == "" || target == "ytsearch1:" || target == "ytmsearch1:" {
		return nil, newError(UnsupportedReference, "empty reference")
	}
	sys.LogDebug(sys.MsgResolverRun, target, opts.Process, opts.Download)
	if !opts.Process {
		return r.resolveFlat(ctx, target, search)
	}
	if opts.Download {
		return r.resolveDownload(ctx, target)
	}
	return r.resolveStream(ctx, target)
}

func (r *YtdlpResolver) resolveFlat(ctx context.Context, target string, search bool) (*Resolution, error) {
	res, err := ytdlp.New().
		FlatPlaylist().
		Print(ytdlpFlatTemplate).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, classify(res, err, target)
	}

	var rows [][]string
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if ps := strings.Split(l, "\t"); len(ps) >= 7 {
			rows = append(rows, ps)
		}
	}
	if len(rows) == 0 {
		return nil, newError(ExtractionFailed, "no results for %s", target)
	}

	first := rows[0]
	if search || first[1] == "NA" || first[1] == "" {
		m := &Media{
			Title:    naToEmpty(first[3]),
			Uploader: naToEmpty(first[4]),
			Duration: parseSeconds(first[5]),
			URL:      firstNonNA(first[2], first[6], target),
		}
		return &Resolution{Media: m, Extractor: first[0]}, nil
	}

	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		if u := naToEmpty(row[2]); u != "" {
			refs = append(refs, u)
		}
	}
	return &Resolution{References: refs, Extractor: first[0]}, nil
}

func (r *YtdlpResolver) resolveStream(ctx context.Context, target string) (*Resolution, error) {
	res, err := ytdlp.New().
		Print(ytdlpFullTemplate).
		Format("bestaudio[ext=webm]/bestaudio").
		NoPlaylist().
		NoCheckFormats().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, classify(res, err, target)
	}
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 5 {
			continue
		}
		return &Resolution{Media: &Media{
			StreamURL: ps[0],
			Title:     naToEmpty(ps[1]),
			Uploader:  naToEmpty(ps[2]),
			Duration:  parseSeconds(ps[3]),
			URL:       firstNonNA(ps[4], target),
		}}, nil
	}
	return nil, newError(ExtractionFailed, "failed to parse metadata for %s", target)
}

func (r *YtdlpResolver) resolveDownload(ctx context.Context, target string) (*Resolution, error) {
	res, err := ytdlp.New().
		Print(ytdlpDownTemplate).
		Format("bestaudio[ext=webm]/bestaudio").
		Output(filepath.Join(r.opts.CacheDir, "%(id)s.%(ext)s")).
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, target)
	if err != nil {
		return nil, classify(res, err, target)
	}
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 5 {
			continue
		}
		return &Resolution{Media: &Media{
			Path:     ps[0],
			Title:    naToEmpty(ps[1]),
			Uploader: naToEmpty(ps[2]),
			Duration: parseSeconds(ps[3]),
			URL:      firstNonNA(ps[4], target),
		}}, nil
	}
	return nil, newError(ExtractionFailed, "download of %s produced no file", target)
}

func classify(res *ytdlp.Result, err error, target string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	stderr := ""
	if res != nil {
		stderr = strings.ToLower(res.Stderr)
	}
	switch {
	case strings.Contains(stderr, "drm"):
		return wrapError(UnsupportedReference, err, "%s is DRM protected", target)
	case strings.Contains(stderr, "unsupported url"):
		return wrapError(UnsupportedReference, err, "unsupported url %s", target)
	default:
		return wrapError(ExtractionFailed, err, "could not extract %s", target)
	}
}

// Search lists songs for a free-text query from YouTube Music and YouTube
// in parallel. Results of the preferred service come first.
func (r *YtdlpResolver) Search(ctx context.Context, q string, limit int) ([]SearchResult, error) {
	preferYT, query := false, strings.TrimSpace(q)
	if strings.HasPrefix(strings.ToUpper(query), strings.ToUpper(r.opts.YoutubePrefix)) {
		preferYT, query = true, strings.TrimSpace(query[len(r.opts.YoutubePrefix):])
	} else if strings.HasPrefix(strings.ToUpper(query), strings.ToUpper(r.opts.YTMusicPrefix)) {
		query = strings.TrimSpace(query[len(r.opts.YTMusicPrefix):])
	}
	if query == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 2600*time.Millisecond)
	defer cancel()

	var (
		mu     sync.Mutex
		ytm    []SearchResult
		yt     []SearchResult
		seen   = make(map[string]bool)
		wg     sync.WaitGroup
		errYT  error
		errYTM error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		page, err := ytmusic.TrackSearch(query).Next()
		if err != nil {
			mu.Lock()
			errYTM = err
			mu.Unlock()
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, v := range page.Tracks {
			if v.VideoID == "" || seen[v.VideoID] {
				continue
			}
			seen[v.VideoID] = true
			artist := ""
			if len(v.Artists) > 0 {
				artist = v.Artists[0].Name
			}
			ytm = append(ytm, SearchResult{
				Title:    v.Title,
				Uploader: artist,
				URL:      "https://music.youtube.com/watch?v=" + v.VideoID,
			})
		}
	}()
	go func() {
		defer wg.Done()
		res, err := ytsearch.NewClient(nil).Search(ctx, query)
		if err != nil {
			mu.Lock()
			errYT = err
			mu.Unlock()
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, v := range res.Results {
			if v.VideoID == "" || seen[v.VideoID] {
				continue
			}
			seen[v.VideoID] = true
			yt = append(yt, SearchResult{
				Title: v.Title,
				URL:   "https://www.youtube.com/watch?v=" + v.VideoID,
			})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	var out []SearchResult
	if preferYT {
		out = append(append(out, yt...), ytm...)
	} else {
		out = append(append(out, ytm...), yt...)
	}
	if len(out) == 0 && errYT != nil && errYTM != nil {
		return nil, wrapError(ExtractionFailed, errors.Join(errYT, errYTM), "search failed")
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchServices maps /music search service names to yt-dlp search prefixes.
var SearchServices = map[string]string{
	"youtube":    "ytsearch",
	"ytmusic":    "ytmsearch",
	"soundcloud": "scsearch",
}

// SearchService runs a yt-dlp search on one service.
func (r *YtdlpResolver) SearchService(ctx context.Context, service, query string, limit int) ([]SearchResult, error) {
	prefix, ok := SearchServices[service]
	if !ok {
		return nil, newError(InvalidArgument, "unknown search service %q", service)
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	res, err := ytdlp.New().
		FlatPlaylist().
		Print("%(url)s\t%(title)s\t%(uploader)s\t%(duration)s").
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		NoWarnings().
		IgnoreConfig().
		Run(ctx, fmt.Sprintf("%s%d:%s", prefix, limit, query))
	if err != nil {
		return nil, classify(res, err, query)
	}
	var out []SearchResult
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 4 {
			continue
		}
		out = append(out, SearchResult{
			URL:      ps[0],
			Title:    naToEmpty(ps[1]),
			Uploader: naToEmpty(ps[2]),
			Duration: parseSeconds(ps[3]),
		})
	}
	return out, nil
}

func parseSeconds(raw string) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func naToEmpty(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func firstNonNA(vals ...string) string {
	for _, v := range vals {
		if v != "" && v != "NA" {
			return v
		}
	}
	return ""
}
