package station

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch monitors dir for station descriptor/playlist file changes and logs
// each one, purely as an operational signal: Resolve always reads the
// directory fresh, so there is no cache for these events to invalidate.
func Watch(ctx context.Context, dir string, log *logrus.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithFields(logrus.Fields{"error": err, "dir": dir}).Warn("station library watch disabled, failed to start")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		log.WithFields(logrus.Fields{"error": err, "dir": dir}).Warn("station library watch disabled, failed to watch directory")
		return
	}

	log.WithFields(logrus.Fields{"dir": dir}).Info("watching station library directory")

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if shouldIgnore(event.Name) {
				continue
			}
			log.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Info("station library changed")

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithFields(logrus.Fields{"error": err}).Warn("station library watch error")
		}
	}
}

func shouldIgnore(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}
