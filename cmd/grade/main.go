// Command grade scores a directory of saved scene snapshots and writes a JSON
// report. Scenes are graded locally by the rule engine, or sent to a running
// analyzer worker when -nats is given. With -watch it instead listens to the
// verdict events of the analyzer workers for a while and reports on those.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/assemblylab/pcbench/engine/assess"
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/pkg/natsutil"
)

// Entry is the outcome for one scene file, or for one watched verdict event.
type Entry struct {
	File    string          `json:"file,omitempty"`
	Path    string          `json:"path,omitempty"`
	Verdict *domain.Verdict `json:"verdict,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Summary aggregates a report.
type Summary struct {
	Timestamp time.Time      `json:"timestamp"`
	Scenes    int            `json:"scenes"`
	Valid     int            `json:"valid"`
	Failed    int            `json:"failed"`
	MeanScore float64        `json:"meanScore"`
	Paths     map[string]int `json:"paths,omitempty"`
}

// Report is the file written by the command.
type Report struct {
	Summary Summary `json:"summary"`
	Entries []Entry `json:"entries"`
}

// grader turns a raw scene snapshot into a verdict.
type grader func(ctx context.Context, scene []byte) (domain.Verdict, error)

func localGrader(svc *assess.Service) grader {
	return func(ctx context.Context, scene []byte) (domain.Verdict, error) {
		return svc.AnalyzeJSON(ctx, scene).Verdict, nil
	}
}

// remoteGrader sends each snapshot to an analyzer worker. A file that is not
// valid JSON is sent as a JSON string so the worker grades it as an invalid
// request, the same verdict the local grader gives.
func remoteGrader(nc *nats.Conn, subject string, timeout time.Duration) grader {
	return func(ctx context.Context, scene []byte) (domain.Verdict, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		payload := json.RawMessage(scene)
		if !json.Valid(scene) {
			quoted, err := json.Marshal(string(scene))
			if err != nil {
				return domain.Verdict{}, err
			}
			payload = quoted
		}
		return natsutil.Request[json.RawMessage, domain.Verdict](ctx, nc, subject, payload)
	}
}

// gradeDir grades every *.json file in dir, in name order.
func gradeDir(ctx context.Context, dir string, grade grader) ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		e := Entry{File: filepath.Base(f)}
		data, err := os.ReadFile(f)
		if err != nil {
			e.Error = err.Error()
			entries = append(entries, e)
			continue
		}
		v, err := grade(ctx, data)
		if err != nil {
			e.Error = err.Error()
		} else {
			e.Verdict = &v
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func summarize(entries []Entry, now time.Time) Summary {
	s := Summary{Timestamp: now, Scenes: len(entries)}
	total := 0
	for _, e := range entries {
		if e.Path != "" {
			if s.Paths == nil {
				s.Paths = make(map[string]int)
			}
			s.Paths[e.Path]++
		}
		if e.Verdict == nil {
			s.Failed++
			continue
		}
		total += e.Verdict.Score
		if e.Verdict.IsValid {
			s.Valid++
		}
	}
	if graded := s.Scenes - s.Failed; graded > 0 {
		s.MeanScore = float64(total) / float64(graded)
	}
	return s
}

// watcher collects the verdict events published by analyzer workers.
type watcher struct {
	mu      sync.Mutex
	entries []Entry
}

func (w *watcher) add(_ context.Context, res assess.Result) {
	v := res.Verdict
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, Entry{Path: res.Path, Verdict: &v})
}

func (w *watcher) snapshot() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.entries)
}

// watch listens on the events subject until ctx ends and returns the events
// seen.
func watch(ctx context.Context, nc *nats.Conn, subject string) ([]Entry, error) {
	w := &watcher{}
	sub, err := natsutil.Subscribe(nc, subject, nil, w.add)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return nil, err
	}
	return w.snapshot(), nil
}

type options struct {
	dir     string
	out     string
	natsURL string
	subject string
	events  string
	timeout time.Duration
	watch   time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.dir, "dir", "scenes", "directory of scene snapshots (*.json)")
	flag.StringVar(&o.out, "out", "report.json", "report output path")
	flag.StringVar(&o.natsURL, "nats", "", "NATS URL of an analyzer worker; empty grades locally")
	flag.StringVar(&o.subject, "subject", "pcbench.connectivity.analyze", "analyzer request subject")
	flag.StringVar(&o.events, "events", "pcbench.connectivity.verdicts", "analyzer verdict events subject")
	flag.DurationVar(&o.timeout, "timeout", 2*time.Minute, "per-scene timeout for remote grading")
	flag.DurationVar(&o.watch, "watch", 0, "listen to verdict events for this long instead of grading -dir (needs -nats)")
	flag.Parse()

	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var nc *nats.Conn
	if o.natsURL != "" {
		var err error
		nc, err = nats.Connect(o.natsURL, nats.Name("pcbench-grade"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
	}

	var entries []Entry
	switch {
	case o.watch > 0:
		if nc == nil {
			return errors.New("-watch needs -nats")
		}
		wctx, cancel := context.WithTimeout(ctx, o.watch)
		defer cancel()
		var err error
		if entries, err = watch(wctx, nc, o.events); err != nil {
			return err
		}
	default:
		grade := localGrader(assess.NewService(nil, assess.Config{Mode: assess.ModeRules}))
		if nc != nil {
			grade = remoteGrader(nc, o.subject, o.timeout)
		}
		var err error
		if entries, err = gradeDir(ctx, o.dir, grade); err != nil {
			return fmt.Errorf("grade %s: %w", o.dir, err)
		}
	}
	report := Report{Summary: summarize(entries, time.Now().UTC()), Entries: entries}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Printf("Graded %d scenes: %d valid, %d failed, mean score %.1f\n",
		report.Summary.Scenes, report.Summary.Valid, report.Summary.Failed, report.Summary.MeanScore)
	return nil
}
