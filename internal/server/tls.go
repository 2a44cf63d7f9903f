package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"resumeforge/internal/config"
	"resumeforge/internal/errors"
)

// CertManager loads the server certificate once and serves it to TLS
// handshakes through GetCertificate, so a reload swaps certificates
// without restarting listeners. With file-based certificates and
// watching enabled it reloads on change, debounced to ride out
// multi-file rotations.
type CertManager struct {
	mu   sync.RWMutex
	cfg  config.TLSConfig
	cert *tls.Certificate
	leaf *x509.Certificate

	fsWatcher     *fsnotify.Watcher
	debounceTimer *time.Timer
	done          chan struct{}
	watching      bool

	logger *errors.Logger
}

// NewCertManager loads the initial certificate from file paths or
// inline PEM content.
func NewCertManager(cfg config.TLSConfig, logger *errors.Logger) (*CertManager, error) {
	cm := &CertManager{
		cfg:    cfg,
		done:   make(chan struct{}),
		logger: logger,
	}
	if err := cm.load(); err != nil {
		return nil, err
	}
	return cm, nil
}

// load reads and parses the certificate, replacing the served one.
func (cm *CertManager) load() error {
	var cert tls.Certificate
	var err error

	if cm.cfg.CertContent != "" && cm.cfg.KeyContent != "" {
		cert, err = tls.X509KeyPair([]byte(cm.cfg.CertContent), []byte(cm.cfg.KeyContent))
		if err != nil {
			return fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
	} else {
		cert, err = tls.LoadX509KeyPair(cm.cfg.CertFile, cm.cfg.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}

	cm.mu.Lock()
	cm.cert = &cert
	cm.leaf = leaf
	cm.mu.Unlock()
	return nil
}

// GetCertificate serves the current certificate to TLS handshakes.
func (cm *CertManager) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.cert == nil {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return cm.cert, nil
}

// CheckExpiry returns the time until the served certificate expires.
// Negative means already expired.
func (cm *CertManager) CheckExpiry() (time.Duration, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.leaf == nil {
		return 0, fmt.Errorf("no certificate loaded")
	}
	return time.Until(cm.leaf.NotAfter), nil
}

// Watching reports whether file watching is active.
func (cm *CertManager) Watching() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.watching
}

// Start begins watching the certificate files when watching is
// configured. Inline content has no files to watch and is a no-op.
func (cm *CertManager) Start() error {
	if !cm.cfg.Watch.Enabled || cm.cfg.CertFile == "" || cm.cfg.KeyFile == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directories, not the files: atomic rotations replace
	// files via rename and the old watch would go stale.
	dirs := map[string]bool{
		filepath.Dir(cm.cfg.CertFile): true,
		filepath.Dir(cm.cfg.KeyFile):  true,
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	cm.mu.Lock()
	cm.fsWatcher = watcher
	cm.watching = true
	cm.mu.Unlock()

	go cm.watchLoop()

	cm.logger.Info("Certificate file watcher started",
		"cert_file", cm.cfg.CertFile,
		"key_file", cm.cfg.KeyFile,
		"debounce_delay", cm.debounceDelay())
	return nil
}

// Stop stops the watcher.
func (cm *CertManager) Stop() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.watching {
		return nil
	}
	close(cm.done)
	if cm.debounceTimer != nil {
		cm.debounceTimer.Stop()
	}
	cm.watching = false
	return cm.fsWatcher.Close()
}

func (cm *CertManager) debounceDelay() time.Duration {
	if cm.cfg.Watch.DebounceDelay > 0 {
		return cm.cfg.Watch.DebounceDelay
	}
	return time.Second
}

func (cm *CertManager) watchLoop() {
	for {
		select {
		case event, ok := <-cm.fsWatcher.Events:
			if !ok {
				return
			}
			if cm.relevantEvent(event) {
				cm.scheduleReload()
			}
		case err, ok := <-cm.fsWatcher.Errors:
			if !ok {
				return
			}
			cm.logger.LogError(err, "Certificate watcher error")
		case <-cm.done:
			return
		}
	}
}

// relevantEvent reports whether the event touches a watched file.
func (cm *CertManager) relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	return base == filepath.Base(cm.cfg.CertFile) || base == filepath.Base(cm.cfg.KeyFile)
}

// scheduleReload debounces a reload so half-written rotations settle
// before the key pair is re-read.
func (cm *CertManager) scheduleReload() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.debounceTimer != nil {
		cm.debounceTimer.Stop()
	}
	cm.debounceTimer = time.AfterFunc(cm.debounceDelay(), func() {
		if err := cm.load(); err != nil {
			cm.logger.LogError(err, "Failed to reload TLS certificates")
			return
		}
		cm.logger.Info("TLS certificates reloaded")
	})
}

// buildTLSConfig creates the server's TLS configuration, wiring dynamic
// certificate lookup through the manager.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	cm, err := NewCertManager(s.Config.Server.TLS, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up TLS: %w", err)
	}
	if err := cm.Start(); err != nil {
		return nil, err
	}
	s.CertManager = cm

	tlsConfig := &tls.Config{
		GetCertificate: cm.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if s.Config.Server.TLS.MinVersion == "1.3" {
		tlsConfig.MinVersion = tls.VersionTLS13
	}
	return tlsConfig, nil
}
