package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danthegoodman1/icemor/fsutils"
	"github.com/danthegoodman1/icemor/utils"
	"github.com/xitongsys/parquet-go-source/local"
)

type (
	// Store persists compaction plans keyed by table and instant
	Store interface {
		Save(ctx context.Context, table string, p *Plan) error
		// Load returns ErrPlanNotFound when no plan exists at instant
		Load(ctx context.Context, table, instant string) (*Plan, error)
		// List returns the instants of the table's plans in ascending order
		List(ctx context.Context, table string) ([]string, error)
		Delete(ctx context.Context, table, instant string) error
	}

	DiskStore struct {
		rootPath string
	}
)

func NewDiskStore(rootPath string) (*DiskStore, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	return &DiskStore{rootPath: rootPath}, nil
}

func (ds *DiskStore) tableDir(table string) (string, error) {
	if err := fsutils.CheckTableName(table); err != nil {
		return "", err
	}
	return filepath.Join(ds.rootPath, table), nil
}

func (ds *DiskStore) planPath(table, instant string) (string, error) {
	dir, err := ds.tableDir(table)
	if err != nil {
		return "", err
	}
	if err = fsutils.CheckInstant(instant); err != nil {
		return "", err
	}
	return filepath.Join(dir, fsutils.MakePlanFileName(instant)), nil
}

// Save writes to a temp file and renames it so readers never see a partial plan
func (ds *DiskStore) Save(_ context.Context, table string, p *Plan) error {
	final, err := ds.planPath(table, p.InstantTime)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return fmt.Errorf("error in os.MkdirAll: %w", err)
	}
	tmp := final + "." + utils.GenRandomID("") + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("error in os.Create: %w", err)
	}
	if err = Encode(f, p); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("error in Encode: %w", err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error closing plan file: %w", err)
	}
	if err = os.Rename(tmp, final); err != nil {
		return fmt.Errorf("error in os.Rename: %w", err)
	}
	return nil
}

func (ds *DiskStore) Load(_ context.Context, table, instant string) (*Plan, error) {
	path, err := ds.planPath(table, instant)
	if err != nil {
		return nil, err
	}
	if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrPlanNotFound, table, instant)
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("error in NewLocalFileReader: %w", err)
	}
	defer fr.Close()
	return Decode(instant, fr)
}

func (ds *DiskStore) List(_ context.Context, table string) ([]string, error) {
	dir, err := ds.tableDir(table)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error in os.ReadDir: %w", err)
	}
	var instants []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fsutils.CompactionPlanExtension) {
			continue
		}
		instants = append(instants, strings.TrimSuffix(e.Name(), fsutils.CompactionPlanExtension))
	}
	sort.Strings(instants)
	return instants, nil
}

func (ds *DiskStore) Delete(_ context.Context, table, instant string) error {
	path, err := ds.planPath(table, instant)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s/%s", ErrPlanNotFound, table, instant)
	}
	if err != nil {
		return fmt.Errorf("error in os.Remove: %w", err)
	}
	return nil
}
