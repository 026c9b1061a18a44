package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "netoptimizer/pkg/logx"
)

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Manager loads the config file and republishes it on change.
type Manager struct {
	path string

	mu       sync.RWMutex
	cfg      *Config
	lastHash uint64

	// subsMu also guards against sending on a channel closed by Unsubscribe.
	subsMu sync.Mutex
	subs   []chan *Config

	log       logx.Logger
	validator func(ctx context.Context, cfg *Config) error
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop()}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

// SetValidator installs a hook run by Watch before a reload is committed.
func (m *Manager) SetValidator(fn func(ctx context.Context, cfg *Config) error) {
	m.validator = fn
}

// Parse reads and strictly decodes the config file without committing it.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

// Decode strictly decodes data; the format follows the file extension of path.
func Decode(path string, data []byte) (*Config, error) {
	jb := data
	if isYAML(path) {
		var err error
		if jb, err = yamlToJSON(data); err != nil {
			return nil, err
		}
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

// publish delivers the newest config to every subscriber. A full buffer
// loses its oldest entry.
func (m *Manager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.log.Debug("config update dropped (subscriber slow)",
				logx.Int("queue_len", len(ch)),
				logx.Int("queue_cap", cap(ch)),
			)
		}
	}
}

// reload parses, validates, commits and publishes the file if its content
// changed. It reports whether a new config was published.
func (m *Manager) reload(ctx context.Context) bool {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return false
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		return false
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			return false
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	m.log.Info("config reloaded", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", h)))
	return true
}

// Watch reloads the config whenever its file changes, until ctx ends.
//
// The watcher is recreated with jittered exponential backoff if fsnotify
// closes its channels or fails to start.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := restartBackoffBase
	sleep := func() bool {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, restartBackoffMax)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, func() { m.reload(ctx) })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			m.log.Warn("config watch init failed", logx.String("dir", dir), logx.Err(err))
			if !sleep() {
				return nil
			}
			continue
		}

		backoff = restartBackoffBase
		m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		m.consume(ctx, w, file, debounce)
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		m.log.Warn("config watcher stopped; restarting", logx.String("dir", dir))
		if !sleep() {
			return nil
		}
	}
	return nil
}

// consume pumps watcher events until ctx ends or the watcher breaks.
func (m *Manager) consume(ctx context.Context, w *fsnotify.Watcher, file string, changed func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Compare basenames; editors report absolute or relative paths.
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
				changed()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			msg := strings.ToLower(err.Error())
			switch {
			case strings.Contains(msg, "overflow"):
				// Events may have been missed; reload once.
				m.log.Warn("config watch overflow; forcing reload", logx.Err(err))
				changed()
			case strings.Contains(msg, "closed"):
				return
			default:
				m.log.Warn("config watch error", logx.Err(err))
			}
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// hashBytes returns a stable 64-bit hash of b. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
