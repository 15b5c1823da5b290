//go:build !darwin

package stream

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

func init() {
	RegisterFactory(newNotifyStream)
}

// eventSeq numbers events across every fsnotify stream in the process, the
// way FSEvents ids come from one global source.
var eventSeq atomic.Uint64

// notifyStream emulates an FSEvents stream on top of fsnotify. fsnotify
// watches single directories, so the subtree is walked at creation and new
// directories are added as they appear.
type notifyStream struct {
	id      ID
	root    string
	mask    fsevent.CreateFlags
	latency time.Duration
	logger  *slog.Logger

	fsw *fsnotify.Watcher
	// dirs is owned by run once Start has been called.
	dirs map[string]struct{}

	out       chan Batch
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newNotifyStream(root string, mask fsevent.CreateFlags, opts Options) (Stream, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: create: %w", err)
	}

	s := &notifyStream{
		id:      NextID(),
		root:    filepath.Clean(root),
		mask:    mask,
		latency: opts.Latency,
		logger:  opts.Logger,
		fsw:     fsw,
		dirs:    make(map[string]struct{}),
		out:     make(chan Batch),
		done:    make(chan struct{}),
	}
	if err := s.addTree(s.root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("fsnotify: watch %s: %w", root, err)
	}
	return s, nil
}

func (s *notifyStream) ID() ID { return s.id }

func (s *notifyStream) Batches() <-chan Batch { return s.out }

func (s *notifyStream) Start() error {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
	return nil
}

func (s *notifyStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *notifyStream) Close() error {
	s.Stop()
	return s.fsw.Close()
}

// addTree watches dir and every directory below it. Only a failure on dir
// itself is returned; unreadable subdirectories are logged and skipped.
func (s *notifyStream) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Debug("fsnotify: skipping unreadable path",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := s.fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("fsnotify: watch add failed",
				slog.String("path", path),
				slog.Any("error", err),
			)
			return nil
		}
		s.dirs[path] = struct{}{}
		return nil
	})
}

func (s *notifyStream) run() {
	defer s.wg.Done()

	var (
		pending pendingBatch
		timer   *time.Timer
		timerC  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	emit := func(path string, flags fsevent.Flags) bool {
		id := eventSeq.Add(1)
		if s.latency <= 0 {
			return s.send(Batch{
				Stream: s.id,
				Paths:  []string{path},
				Flags:  []fsevent.Flags{flags},
				IDs:    []uint64{id},
			})
		}
		pending.add(path, flags, id)
		if timer == nil {
			timer = time.NewTimer(s.latency)
			timerC = timer.C
		}
		return true
	}

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			path, flags, ok := s.translate(ev)
			if !ok {
				continue
			}
			if !emit(path, flags) {
				return
			}
		case <-timerC:
			timer, timerC = nil, nil
			b := pending.take(s.id)
			if !s.send(b) {
				return
			}
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if !emit(s.root, fsevent.FlagMustScanSubDirs|fsevent.FlagKernelDropped) {
					return
				}
				continue
			}
			s.logger.Warn("fsnotify: watcher error", slog.Any("error", err))
		}
	}
}

func (s *notifyStream) send(b Batch) bool {
	select {
	case s.out <- b:
		return true
	case <-s.done:
		return false
	}
}

// translate maps an fsnotify event onto FSEvents-layout flags and keeps the
// directory set in sync.
func (s *notifyStream) translate(ev fsnotify.Event) (string, fsevent.Flags, bool) {
	var flags fsevent.Flags
	if ev.Has(fsnotify.Create) {
		flags |= fsevent.FlagItemCreated
	}
	if ev.Has(fsnotify.Remove) {
		flags |= fsevent.FlagItemRemoved
	}
	if ev.Has(fsnotify.Rename) {
		flags |= fsevent.FlagItemRenamed
	}
	if ev.Has(fsnotify.Write) {
		flags |= fsevent.FlagItemModified
	}
	if ev.Has(fsnotify.Chmod) {
		flags |= fsevent.FlagItemInodeMeta
	}
	if flags == 0 {
		return "", 0, false
	}

	name := filepath.Clean(ev.Name)
	kind := s.kind(name)
	flags |= kind

	gone := flags&(fsevent.FlagItemRemoved|fsevent.FlagItemRenamed) != 0
	switch {
	case kind == fsevent.FlagItemIsDir && flags&fsevent.FlagItemCreated != 0 && !gone:
		if err := s.addTree(name); err != nil {
			s.logger.Warn("fsnotify: watch new directory failed",
				slog.String("path", name),
				slog.Any("error", err),
			)
		}
	case gone:
		if _, ok := s.dirs[name]; ok {
			delete(s.dirs, name)
			_ = s.fsw.Remove(name)
		}
	}

	if name == s.root && gone && s.mask.Has(fsevent.CreateWatchRoot) {
		flags |= fsevent.FlagRootChanged
	}

	if !s.mask.Has(fsevent.CreateFileEvents) {
		// Directory granularity: report the directory whose contents changed.
		return filepath.Dir(name), flags & fsevent.FlagRootChanged, true
	}
	return name, flags, true
}

func (s *notifyStream) kind(name string) fsevent.Flags {
	info, err := os.Lstat(name)
	if err == nil {
		mode := info.Mode()
		switch {
		case mode&fs.ModeSymlink != 0:
			return fsevent.FlagItemIsSymlink
		case mode.IsDir():
			return fsevent.FlagItemIsDir
		default:
			return fsevent.FlagItemIsFile
		}
	}
	if _, ok := s.dirs[name]; ok {
		return fsevent.FlagItemIsDir
	}
	return fsevent.FlagItemIsFile
}

// pendingBatch accumulates events during the latency window, merging the
// flags of repeated paths the way FSEvents coalesces them.
type pendingBatch struct {
	paths []string
	flags []fsevent.Flags
	ids   []uint64
	index map[string]int
}

func (p *pendingBatch) add(path string, flags fsevent.Flags, id uint64) {
	if i, ok := p.index[path]; ok {
		p.flags[i] |= flags
		p.ids[i] = id
		return
	}
	if p.index == nil {
		p.index = make(map[string]int)
	}
	p.index[path] = len(p.paths)
	p.paths = append(p.paths, path)
	p.flags = append(p.flags, flags)
	p.ids = append(p.ids, id)
}

func (p *pendingBatch) take(id ID) Batch {
	b := Batch{Stream: id, Paths: p.paths, Flags: p.flags, IDs: p.ids}
	*p = pendingBatch{}
	return b
}
