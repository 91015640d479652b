package migration

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
)

type fakeMigrator struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	calls      []string
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return f.downErr
}

func (f *fakeMigrator) Drop() error {
	f.calls = append(f.calls, "drop")
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, f.dirty, f.versionErr
}

func TestRun_UpIgnoresNoChange(t *testing.T) {
	t.Parallel()

	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	if err := Run(m, "up", zerolog.Nop()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(m.calls) != 1 || m.calls[0] != "up" {
		t.Fatalf("unexpected calls: %v", m.calls)
	}
}

func TestRun_DownPropagatesFailure(t *testing.T) {
	t.Parallel()

	failure := errors.New("dirty database")
	m := &fakeMigrator{downErr: failure}
	if err := Run(m, "down", zerolog.Nop()); !errors.Is(err, failure) {
		t.Fatalf("expected %v, got %v", failure, err)
	}
}

func TestRun_VersionLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m := &fakeMigrator{version: 1}
	if err := Run(m, "version", zerolog.New(&buf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"version":1`) {
		t.Fatalf("expected version in log, got %s", buf.String())
	}

	buf.Reset()
	m = &fakeMigrator{versionErr: migrate.ErrNilVersion}
	if err := Run(m, "version", zerolog.New(&buf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "no migration applied") {
		t.Fatalf("expected nil version log, got %s", buf.String())
	}
}

func TestRun_UnsupportedAction(t *testing.T) {
	t.Parallel()

	m := &fakeMigrator{}
	if err := Run(m, "force", zerolog.Nop()); err == nil {
		t.Fatal("expected error for unsupported action")
	}
	if len(m.calls) != 0 {
		t.Fatalf("no migrator call expected, got %v", m.calls)
	}
}
