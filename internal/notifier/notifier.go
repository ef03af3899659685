// Package notifier delivers reminder notifications to the lectern-tray helper
// over its localhost webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/logger"
)

// ErrTrayNotRunning means no live lectern-tray process owns the lockfile.
var ErrTrayNotRunning = errors.New("lectern-tray is not running")

// Message is the webhook payload understood by lectern-tray.
type Message struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	Kind       string `json:"kind"`
	DurationMs uint32 `json:"duration_ms"`
}

// endpoint is a validated lockfile: port|pid|secret.
type endpoint struct {
	port   int
	pid    int
	secret string
}

type Notifier struct {
	configDir   func() (string, error)
	findProcess func(int) (ps.Process, error)
	client      *http.Client
	log         *log.Logger
}

func New() *Notifier {
	return &Notifier{
		configDir:   os.UserConfigDir,
		findProcess: ps.FindProcess,
		client:      &http.Client{Timeout: constants.NotifyTimeout},
		log:         logger.With("component", "notifier"),
	}
}

// Notify sends msg to the running tray helper.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	dir, err := n.trayDir()
	if err != nil {
		return err
	}
	ep, err := n.locate(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}
	if msg.DurationMs == 0 {
		msg.DurationMs = constants.NotificationDurationMs
	}
	n.log.Debug("sending notification", "port", ep.port, "kind", msg.Kind)
	return n.send(ctx, ep, msg)
}

// trayDir returns the tray helper's config directory, honoring a custom
// lockfile_dir in its settings.json.
func (n *Notifier) trayDir() (string, error) {
	configDir, err := n.configDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	trayDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	data, err := os.ReadFile(filepath.Join(trayDir, "settings.json"))
	if err != nil {
		return trayDir, nil
	}
	var doc struct {
		Settings struct {
			LockfileDir string `json:"lockfile_dir"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		n.log.Warn("ignoring unreadable tray settings", "error", err)
		return trayDir, nil
	}
	if doc.Settings.LockfileDir != "" {
		return doc.Settings.LockfileDir, nil
	}
	return trayDir, nil
}

func parseLockfile(content string) (endpoint, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return endpoint{}, errors.New("lockfile is malformed")
	}
	port, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return endpoint{}, errors.New("invalid port number in lockfile")
	}
	if port < 1 || port > 65535 {
		return endpoint{}, fmt.Errorf("port number %d is outside valid range (1-65535)", port)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return endpoint{}, errors.New("invalid process ID in lockfile")
	}
	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return endpoint{}, errors.New("secret in lockfile is empty")
	}
	return endpoint{port: port, pid: pid, secret: secret}, nil
}

// locate reads the lockfile and checks that its pid is a live tray process.
func (n *Notifier) locate(lockfile string) (endpoint, error) {
	content, err := os.ReadFile(lockfile)
	if err != nil {
		return endpoint{}, ErrTrayNotRunning
	}
	ep, err := parseLockfile(string(content))
	if err != nil {
		return endpoint{}, err
	}

	process, err := n.findProcess(ep.pid)
	if err != nil || process == nil {
		return endpoint{}, ErrTrayNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.NotifierExecutable) {
		return endpoint{}, fmt.Errorf("process with PID %d is not %s (is %s)", ep.pid, constants.NotifierExecutable, process.Executable())
	}
	return ep, nil
}

func (n *Notifier) send(ctx context.Context, ep endpoint, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://127.0.0.1:%d", ep.port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Lectern-Secret", ep.secret)

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	text, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("notification failed with status %d: %s", res.StatusCode, strings.TrimSpace(string(text)))
}
