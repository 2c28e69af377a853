package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `-cmd=create` writes new files; they are embedded on the next build.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Step is one migration touched or inspected by a command.
type Step struct {
	Version   int64
	Source    string
	Action    string
	Duration  time.Duration
	AppliedAt time.Time
}

func (s Step) String() string {
	switch {
	case s.Duration > 0:
		return fmt.Sprintf("%-8s %d %s (%s)", s.Action, s.Version, s.Source, s.Duration.Round(time.Millisecond))
	case !s.AppliedAt.IsZero():
		return fmt.Sprintf("%-8s %d %s at %s", s.Action, s.Version, s.Source, s.AppliedAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%-8s %d %s", s.Action, s.Version, s.Source)
	}
}

func provider(db *sql.DB) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Run executes up, down or status against the embedded migrations.
func Run(ctx context.Context, db *sql.DB, command string) ([]Step, error) {
	p, err := provider(db)
	if err != nil {
		return nil, err
	}
	switch command {
	case "up":
		res, err := p.Up(ctx)
		return applied(res), wrapGoose(command, err)
	case "down":
		res, err := p.Down(ctx)
		if res == nil {
			return nil, wrapGoose(command, err)
		}
		return applied([]*goose.MigrationResult{res}), wrapGoose(command, err)
	case "status":
		states, err := p.Status(ctx)
		if err != nil {
			return nil, wrapGoose(command, err)
		}
		steps := make([]Step, 0, len(states))
		for _, st := range states {
			steps = append(steps, Step{
				Version:   st.Source.Version,
				Source:    st.Source.Path,
				Action:    string(st.State),
				AppliedAt: st.AppliedAt,
			})
		}
		return steps, nil
	default:
		return nil, fmt.Errorf("unsupported goose command %q", command)
	}
}

// MigrateToVersion moves the schema up or down until targetVersion is the latest applied.
func MigrateToVersion(ctx context.Context, db *sql.DB, targetVersion string) ([]Step, error) {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil || target < 0 {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", targetVersion)
	}
	p, err := provider(db)
	if err != nil {
		return nil, err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		res, err = p.UpTo(ctx, target)
	default:
		res, err = p.DownTo(ctx, target)
	}
	return applied(res), wrapGoose(fmt.Sprintf("migrate %d -> %d", current, target), err)
}

func applied(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:  r.Source.Version,
			Source:   r.Source.Path,
			Action:   r.Direction,
			Duration: r.Duration,
		})
	}
	return steps
}

func wrapGoose(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
