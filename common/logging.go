/*
	Copyright (c) 2023 Adrian Batzill
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logging.go: Log file with size based rotation and free space guard

*/

package common

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ricochet2200/go-disk-usage/du"
)

const (
	DefaultLogMaxSize = 10 * 1024 * 1024 // rotate above 10mb
	DefaultLogMinFree = 50 * 1024 * 1024 // leave 50mb free
	DefaultLogKeep    = 9
)

// LogFile is an append-only log file that rotates itself into name.1 to
// name.Keep. It is an io.Writer, safe for concurrent use, so it can back a
// logrus logger directly.
type LogFile struct {
	Dir     string
	Name    string
	MaxSize int64
	MinFree uint64
	Keep    int

	mu   sync.Mutex
	fp   *os.File
	path string
}

// OpenLogFile opens or creates dir/name for appending.
func OpenLogFile(dir, name string) (*LogFile, error) {
	l := &LogFile{
		Dir:     dir,
		Name:    name,
		MaxSize: DefaultLogMaxSize,
		MinFree: DefaultLogMinFree,
		Keep:    DefaultLogKeep,
		path:    filepath.Join(dir, name),
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LogFile) open() error {
	fp, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if l.fp != nil {
		l.fp.Close()
	}
	l.fp = fp
	return nil
}

func (l *LogFile) Path() string { return l.path }

func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fp == nil {
		return 0, os.ErrClosed
	}
	return l.fp.Write(p)
}

// Files returns the rotated log files, newest first.
func (l *LogFile) Files() []string {
	entries, err := os.ReadDir(l.Dir)
	logs := make([]string, 0)
	if err != nil {
		return logs
	}

	for _, e := range entries {
		if _, ok := l.logNum(e.Name()); ok {
			logs = append(logs, filepath.Join(l.Dir, e.Name()))
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		a, _ := l.logNum(filepath.Base(logs[i]))
		b, _ := l.logNum(filepath.Base(logs[j]))
		return a < b
	})
	return logs
}

func (l *LogFile) logNum(name string) (int, bool) {
	if !strings.HasPrefix(name, l.Name+".") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, l.Name+"."))
	return n, err == nil && n > 0
}

// Rotate shifts every rotated file up by one, dropping the one past Keep,
// moves the current file to name.1 and reopens an empty one.
func (l *LogFile) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logs := l.Files()
	for i := len(logs) - 1; i >= 0; i-- {
		logNum, _ := l.logNum(filepath.Base(logs[i]))
		if logNum >= l.Keep {
			os.Remove(logs[i])
			continue
		}
		os.Rename(logs[i], filepath.Join(l.Dir, l.Name+"."+strconv.Itoa(logNum+1)))
	}

	if err := os.Rename(l.path, l.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return l.open()
}

// DeleteOldest removes the oldest rotated file and returns its size, or 0
// if nothing was removed.
func (l *LogFile) DeleteOldest() int64 {
	logs := l.Files()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if err := os.Remove(oldest); err != nil {
		return 0
	}
	return stat.Size()
}

func (l *LogFile) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fp == nil {
		return 0
	}
	fileInfo, err := l.fp.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

// Check rotates the file when it is over MaxSize and deletes rotated files
// while the disk has less than MinFree bytes available.
func (l *LogFile) Check() error {
	if l.Size() > l.MaxSize {
		if err := l.Rotate(); err != nil {
			return err
		}
	}

	usage := du.NewDiskUsage(l.Dir)
	freeBytes := usage.Free()
	for freeBytes < l.MinFree {
		deleted := l.DeleteOldest()
		if deleted == 0 {
			break
		}
		freeBytes += uint64(deleted)
	}
	return nil
}

// Watch runs Check every interval until stop is closed.
func (l *LogFile) Watch(interval time.Duration, stop <-chan struct{}, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := l.Check(); err != nil && onError != nil {
			onError(err)
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fp == nil {
		return nil
	}
	err := l.fp.Close()
	l.fp = nil
	return err
}
