// Package progress delivers download and split progress to optional
// process-wide observers. Callbacks are registered once and invoked under a
// mutex; a panicking observer is isolated so it cannot abort a split.
package progress

import "sync"

// SplitStage identifies a phase boundary of a split run.
type SplitStage string

const (
	StageResolveModel  SplitStage = "resolve_model"
	StageEnginePreload SplitStage = "engine_preload"
	StageReadAudio     SplitStage = "read_audio"
	StageInfer         SplitStage = "infer"
	StageWriteStems    SplitStage = "write_stems"
	StageFinalize      SplitStage = "finalize"
)

// SplitEventKind discriminates SplitEvent payloads.
type SplitEventKind int

const (
	KindStage SplitEventKind = iota
	KindChunks
	KindWriting
	KindFinished
)

// SplitEvent is one progress notification from a split run. Stage is set for
// KindStage, Stem for KindWriting, and Done/Total/Percent for KindChunks and
// KindWriting.
type SplitEvent struct {
	Kind    SplitEventKind
	Stage   SplitStage
	Stem    string
	Done    int
	Total   int
	Percent float64
}

// DownloadFunc receives cumulative downloaded bytes and the expected total.
// Total is 0 when the server did not advertise a content length.
type DownloadFunc func(downloaded, total uint64)

// SplitFunc receives split progress events in temporal order.
type SplitFunc func(SplitEvent)

var (
	mu         sync.Mutex
	downloadCB DownloadFunc
	splitCB    SplitFunc
)

// SetDownloadCallback registers the download observer. The first registration
// wins; later calls are ignored. The callback must be safe for concurrent use
// and must not call back into the splitter.
func SetDownloadCallback(cb DownloadFunc) {
	mu.Lock()
	defer mu.Unlock()
	if downloadCB == nil {
		downloadCB = cb
	}
}

// SetSplitCallback registers the split observer. The first registration wins;
// later calls are ignored.
func SetSplitCallback(cb SplitFunc) {
	mu.Lock()
	defer mu.Unlock()
	if splitCB == nil {
		splitCB = cb
	}
}

// EmitDownload invokes the download observer, if any.
func EmitDownload(downloaded, total uint64) {
	mu.Lock()
	defer mu.Unlock()
	if downloadCB == nil {
		return
	}
	defer func() { _ = recover() }()
	downloadCB(downloaded, total)
}

// EmitSplit invokes the split observer, if any.
func EmitSplit(ev SplitEvent) {
	mu.Lock()
	defer mu.Unlock()
	if splitCB == nil {
		return
	}
	defer func() { _ = recover() }()
	splitCB(ev)
}

// Stage emits a KindStage event.
func Stage(s SplitStage) {
	EmitSplit(SplitEvent{Kind: KindStage, Stage: s})
}

// Chunks emits a KindChunks event with the percentage precomputed.
func Chunks(done, total int) {
	EmitSplit(SplitEvent{Kind: KindChunks, Done: done, Total: total, Percent: percent(done, total)})
}

// Writing emits a KindWriting event for one stem.
func Writing(stem string, done, total int) {
	EmitSplit(SplitEvent{Kind: KindWriting, Stem: stem, Done: done, Total: total, Percent: percent(done, total)})
}

// Finished emits the terminal event of a split run.
func Finished() {
	EmitSplit(SplitEvent{Kind: KindFinished})
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total) * 100.0
}

// reset clears both observers. Test hook only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	downloadCB = nil
	splitCB = nil
}
