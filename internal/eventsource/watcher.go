package eventsource

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const debounceDelay = 100 * time.Millisecond

// FileWatcher calls onChange after a watched file is written, created or
// renamed into place. Bursts of events are collapsed into one call.
//
// The parent directory is watched rather than the file itself so that
// editors replacing the file through a rename are still noticed.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(path string)
	log      *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewFileWatcher(path string, onChange func(path string)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  w,
		path:     abs,
		onChange: onChange,
		log:      logrus.WithFields(logrus.Fields{"component": "file-watcher", "path": abs}),
		done:     make(chan struct{}),
	}
	fw.wg.Add(1)
	go fw.watch()
	return fw, nil
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fw.schedule()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.WithError(err).Warn("watch error")

		case <-fw.done:
			return
		}
	}
}

func (fw *FileWatcher) schedule() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(debounceDelay, func() {
		select {
		case <-fw.done:
			return
		default:
		}
		fw.log.Debug("file changed")
		if fw.onChange != nil {
			fw.onChange(fw.path)
		}
	})
}

// Close stops watching. Pending change notifications are dropped.
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		fw.mu.Lock()
		if fw.timer != nil {
			fw.timer.Stop()
		}
		fw.mu.Unlock()
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}
