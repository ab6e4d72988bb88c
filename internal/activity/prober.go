package activity

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sbinet/pstree"
)

const (
	DefaultUtmpPath = "/var/run/utmp"
	defaultDevDir   = "/dev"
)

// Options configures a Prober. Zero fields fall back to the host defaults.
type Options struct {
	UtmpPath        string
	DevDir          string
	WatchPaths      []string
	DetectProcesses bool
	Logger          *slog.Logger

	Sessions    func(context.Context) ([]Session, error)
	ProcessTree func() (*pstree.Tree, error)
	Now         func() time.Time
}

// Prober computes the last time the host was in use.
type Prober struct {
	utmpPath        string
	devDir          string
	watchPaths      []string
	detectProcesses bool
	log             *slog.Logger
	sessions        func(context.Context) ([]Session, error)
	processTree     func() (*pstree.Tree, error)
	now             func() time.Time
}

func New(opts Options) *Prober {
	p := &Prober{
		utmpPath:        opts.UtmpPath,
		devDir:          opts.DevDir,
		watchPaths:      opts.WatchPaths,
		detectProcesses: opts.DetectProcesses,
		log:             opts.Logger,
		sessions:        opts.Sessions,
		processTree:     opts.ProcessTree,
		now:             opts.Now,
	}
	if p.utmpPath == "" {
		p.utmpPath = DefaultUtmpPath
	}
	if p.devDir == "" {
		p.devDir = defaultDevDir
	}
	if p.log == nil {
		p.log = slog.New(slog.DiscardHandler)
	}
	if p.sessions == nil {
		p.sessions = WhoSessions
	}
	if p.processTree == nil {
		p.processTree = pstree.New
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// LastActive returns the most recent activity across the login accounting
// file, the terminals of logged in users, the watch paths and, when
// enabled, the process tree.
func (p *Prober) LastActive(ctx context.Context) Record {
	var latest Record
	if _, err := os.Stat(p.utmpPath); err == nil {
		latest = Max(latest, p.scan(p.utmpPath))
	} else {
		p.log.Error("Login accounting file does not exist", "path", p.utmpPath)
	}

	latest = Max(latest, p.terminalAccess(ctx))

	for _, path := range p.watchPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		latest = Max(latest, p.scan(path))
	}

	if p.detectProcesses {
		latest = Max(latest, p.processActivity())
	}
	return latest
}

func (p *Prober) scan(path string) Record {
	return scan(path, func(path string, err error) {
		p.log.Debug("Skipping unreadable path", "path", path, "error", err)
	})
}

// terminalAccess returns the most recently read terminal device among the
// logged in sessions.
func (p *Prober) terminalAccess(ctx context.Context) Record {
	var latest Record
	sessions, err := p.sessions(ctx)
	if err != nil {
		p.log.Debug("Failed to list sessions", "error", err)
		return latest
	}
	for _, s := range sessions {
		device := filepath.Join(p.devDir, s.TTY)
		atime, _, err := statTimes(device)
		if err != nil {
			continue
		}
		latest.observe(device, atime)
	}
	return latest
}

func (p *Prober) processActivity() Record {
	tree, err := p.processTree()
	if err != nil {
		p.log.Debug("Failed to read process tree", "error", err)
		return Record{}
	}
	name, ok := InteractiveProcess(tree)
	if !ok {
		return Record{}
	}
	return Record{File: "process:" + name, Timestamp: p.now()}
}
