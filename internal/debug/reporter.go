package debug

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"go.uber.org/zap"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.]+`)

// Reporter logs snapshots and optionally keeps them on disk.
type Reporter struct {
	logger    *zap.Logger
	files     *files.Manager
	directory string
	max       int
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithDirectory persists rendered snapshots into directory, keeping at most max files.
func WithDirectory(fm *files.Manager, directory string, max int) ReporterOption {
	return func(r *Reporter) {
		r.files = fm
		r.directory = directory
		r.max = max
	}
}

// NewReporter creates a snapshot reporter.
func NewReporter(logger *zap.Logger, opts ...ReporterOption) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reporter{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report logs s and writes it to the snapshot directory when one is configured.
func (r *Reporter) Report(s *Snapshot) {
	r.logger.Error(s.Message,
		zap.String("snapshot", s.ID),
		zap.String("type", s.Type),
		zap.Error(s.Err),
	)

	if r.files == nil || r.directory == "" {
		return
	}

	filename := path.Join(r.directory, r.Filename(s))
	if err := r.files.Write(filename, []byte(s.Render()), files.Runtime, true); err != nil {
		r.logger.Warn("unable to persist snapshot", zap.String("filename", filename), zap.Error(err))
		return
	}
	r.prune()
}

// Filename returns the name a snapshot is stored under.
func (r *Reporter) Filename(s *Snapshot) string {
	return s.Time.Format("20060102-150405.000") + "-" + strings.Trim(unsafeName.ReplaceAllString(s.Type, "-"), "-") + ".txt"
}

// Snapshots lists persisted snapshot files, oldest first.
func (r *Reporter) Snapshots() ([]string, error) {
	if r.files == nil {
		return nil, nil
	}
	list, err := r.files.GetFiles(r.directory, "txt")
	if err != nil {
		return nil, err
	}
	sort.Strings(list)
	return list, nil
}

func (r *Reporter) prune() {
	if r.max <= 0 {
		return
	}
	list, err := r.Snapshots()
	if err != nil {
		r.logger.Warn("unable to list snapshots", zap.Error(err))
		return
	}
	for len(list) > r.max {
		if err := r.files.Delete(list[0]); err != nil {
			r.logger.Warn("unable to delete snapshot", zap.String("filename", list[0]), zap.Error(err))
			return
		}
		list = list[1:]
	}
}
