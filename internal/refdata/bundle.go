package refdata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyeh/hccscore/internal/parquetio"
)

// Bundle file names inside <root>/<version>/.
const (
	ManifestFile     = "manifest.yaml"
	DiagnosesFile    = "diagnoses.parquet"
	CategoriesFile   = "categories.parquet"
	HierarchyFile    = "hierarchy.parquet"
	GroupsFile       = "groups.parquet"
	DemographicsFile = "demographics.parquet"
	CoefficientsFile = "coefficients.parquet"
	ExclusionsFile   = "exclusions.parquet"
)

// Loader fetches the raw tables of one model version.
type Loader interface {
	LoadTables(ctx context.Context, version string) (*Tables, error)
}

// BundleLoader reads bundles from a directory tree, one sub-directory per
// model version.
type BundleLoader struct {
	Root string
}

// LoadTables reads <Root>/<version>. A missing directory is
// ErrUnsupportedModelVersion.
func (l BundleLoader) LoadTables(ctx context.Context, version string) (*Tables, error) {
	if version == "" || strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModelVersion, version)
	}
	dir := filepath.Join(l.Root, version)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: %s (no bundle at %s)", ErrUnsupportedModelVersion, version, dir)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := ReadBundle(dir)
	if err != nil {
		return nil, err
	}
	if t.Manifest.Version == "" {
		t.Manifest.Version = version
	}
	if t.Manifest.Version != version {
		return nil, fmt.Errorf("%w: bundle %s declares version %s", ErrInvalidReference, dir, t.Manifest.Version)
	}
	return t, nil
}

// MapLoader serves tables built in memory. Tests and embedded callers use it.
type MapLoader map[string]*Tables

// LoadTables returns the tables registered under version.
func (m MapLoader) LoadTables(_ context.Context, version string) (*Tables, error) {
	t, ok := m[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModelVersion, version)
	}
	return t, nil
}

// ReadBundle reads a bundle directory. Hierarchy, groups and exclusions are
// optional; the other tables are required.
func ReadBundle(dir string) (*Tables, error) {
	var t Tables

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &t.Manifest); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrInvalidReference, err)
	}

	if t.Diagnoses, err = readTable[DiagnosisRow](dir, DiagnosesFile, true); err != nil {
		return nil, err
	}
	if t.Categories, err = readTable[CategoryRow](dir, CategoriesFile, true); err != nil {
		return nil, err
	}
	if t.Hierarchy, err = readTable[HierarchyRow](dir, HierarchyFile, false); err != nil {
		return nil, err
	}
	if t.Groups, err = readTable[GroupRow](dir, GroupsFile, false); err != nil {
		return nil, err
	}
	if t.Demographics, err = readTable[DemographicRow](dir, DemographicsFile, true); err != nil {
		return nil, err
	}
	if t.Coefficients, err = readTable[CoefficientRow](dir, CoefficientsFile, true); err != nil {
		return nil, err
	}
	if t.Exclusions, err = readTable[ExclusionRow](dir, ExclusionsFile, false); err != nil {
		return nil, err
	}
	return &t, nil
}

func readTable[T any](dir, name string, required bool) ([]T, error) {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if required {
			return nil, fmt.Errorf("%w: bundle %s is missing %s", ErrInvalidReference, dir, name)
		}
		return nil, nil
	}
	rows, err := parquetio.ReadAll[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return rows, nil
}

// WriteBundle writes t as a bundle directory, creating dir if needed.
func WriteBundle(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	data, err := yaml.Marshal(&t.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	writes := []struct {
		name string
		fn   func(string) error
	}{
		{DiagnosesFile, func(p string) error { return parquetio.WriteAll(p, t.Diagnoses) }},
		{CategoriesFile, func(p string) error { return parquetio.WriteAll(p, t.Categories) }},
		{HierarchyFile, func(p string) error { return parquetio.WriteAll(p, t.Hierarchy) }},
		{GroupsFile, func(p string) error { return parquetio.WriteAll(p, t.Groups) }},
		{DemographicsFile, func(p string) error { return parquetio.WriteAll(p, t.Demographics) }},
		{CoefficientsFile, func(p string) error { return parquetio.WriteAll(p, t.Coefficients) }},
		{ExclusionsFile, func(p string) error { return parquetio.WriteAll(p, t.Exclusions) }},
	}
	for _, w := range writes {
		if err := w.fn(filepath.Join(dir, w.name)); err != nil {
			return fmt.Errorf("write %s: %w", w.name, err)
		}
	}
	return nil
}
