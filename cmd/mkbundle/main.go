// mkbundle builds a reference bundle directory from CSV sources.
// The source directory holds manifest.yaml plus one CSV per table, each with a
// header row: diagnoses.csv (diagnosis,category), categories.csv (category,label),
// hierarchy.csv (superior,inferior), groups.csv (sub_model,group,category),
// demographics.csv (sub_model,sex,age_min,age_max,variable),
// coefficients.csv (sub_model,variable,tier,coefficient) and
// exclusions.csv (sub_model,category). hierarchy, groups and exclusions are optional.
// Usage: go run ./cmd/mkbundle --src refsrc/2025 --out bundles/2025
//
//	go run ./cmd/mkbundle --sample --out bundles/2025-sample
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/hccscore/internal/normalize"
	"github.com/gyeh/hccscore/internal/refdata"
)

func main() {
	src := flag.String("src", "", "directory with manifest.yaml and table CSVs")
	out := flag.String("out", "", "bundle output directory")
	sample := flag.Bool("sample", false, "write the built-in sample bundle instead of reading --src")
	checkOnly := flag.Bool("check", false, "validate only, don't write")
	flag.Parse()

	if *out == "" && !*checkOnly {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}
	if (*src == "") == !*sample {
		fmt.Fprintln(os.Stderr, "exactly one of --src and --sample is required")
		os.Exit(1)
	}

	var (
		t   *refdata.Tables
		err error
	)
	if *sample {
		t = refdata.SampleTables()
	} else if t, err = readSource(*src); err != nil {
		fmt.Fprintf(os.Stderr, "read source: %v\n", err)
		os.Exit(1)
	}

	ts, err := refdata.NewTableSet(t)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid bundle: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("Bundle %s (model year %d): %d categories, %d diagnoses, %d hierarchy edges, %d groups rows, %d coefficients\n",
		ts.Version(), ts.Manifest().ModelYear, len(t.Categories), len(t.Diagnoses), len(t.Hierarchy),
		len(t.Groups), len(t.Coefficients))
	if *checkOnly {
		return
	}

	if err := refdata.WriteBundle(*out, t); err != nil {
		fmt.Fprintf(os.Stderr, "write bundle: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}

func readSource(dir string) (*refdata.Tables, error) {
	t := &refdata.Tables{}

	data, err := os.ReadFile(filepath.Join(dir, refdata.ManifestFile))
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &t.Manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	tables := []struct {
		name     string
		cols     []string
		required bool
		add      func(r []string) error
	}{
		{"diagnoses.csv", []string{"diagnosis", "category"}, true, func(r []string) error {
			t.Diagnoses = append(t.Diagnoses, refdata.DiagnosisRow{Diagnosis: normalize.DiagnosisCode(r[0]), Category: r[1]})
			return nil
		}},
		{"categories.csv", []string{"category", "label"}, true, func(r []string) error {
			t.Categories = append(t.Categories, refdata.CategoryRow{Category: r[0], Label: r[1]})
			return nil
		}},
		{"hierarchy.csv", []string{"superior", "inferior"}, false, func(r []string) error {
			t.Hierarchy = append(t.Hierarchy, refdata.HierarchyRow{Superior: r[0], Inferior: r[1]})
			return nil
		}},
		{"groups.csv", []string{"sub_model", "group", "category"}, false, func(r []string) error {
			t.Groups = append(t.Groups, refdata.GroupRow{SubModel: r[0], Group: r[1], Category: r[2]})
			return nil
		}},
		{"demographics.csv", []string{"sub_model", "sex", "age_min", "age_max", "variable"}, true, func(r []string) error {
			lo, err := strconv.ParseInt(r[2], 10, 32)
			if err != nil {
				return fmt.Errorf("age_min %q: %w", r[2], err)
			}
			hi, err := strconv.ParseInt(r[3], 10, 32)
			if err != nil {
				return fmt.Errorf("age_max %q: %w", r[3], err)
			}
			t.Demographics = append(t.Demographics, refdata.DemographicRow{
				SubModel: r[0], Sex: strings.ToUpper(r[1]), AgeMin: int32(lo), AgeMax: int32(hi), Variable: r[4],
			})
			return nil
		}},
		{"coefficients.csv", []string{"sub_model", "variable", "tier", "coefficient"}, true, func(r []string) error {
			c, err := decimal.NewFromString(r[3])
			if err != nil {
				return fmt.Errorf("coefficient %q: %w", r[3], err)
			}
			t.Coefficients = append(t.Coefficients, refdata.CoefficientRow{
				SubModel: r[0], Variable: r[1], Tier: strings.ToLower(r[2]), Coefficient: c.String(),
			})
			return nil
		}},
		{"exclusions.csv", []string{"sub_model", "category"}, false, func(r []string) error {
			t.Exclusions = append(t.Exclusions, refdata.ExclusionRow{SubModel: r[0], Category: r[1]})
			return nil
		}},
	}

	for _, tb := range tables {
		if err := readCSV(filepath.Join(dir, tb.name), tb.cols, tb.required, tb.add); err != nil {
			return nil, fmt.Errorf("%s: %w", tb.name, err)
		}
	}
	return t, nil
}

// readCSV calls add with the named columns of every data row, in cols order.
func readCSV(path string, cols []string, required bool, add func([]string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), c) {
				idx[i] = j
			}
		}
		if idx[i] < 0 {
			return fmt.Errorf("missing column %q", c)
		}
	}

	vals := make([]string, len(cols))
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for i, j := range idx {
			vals[i] = strings.TrimSpace(rec[j])
		}
		if err := add(vals); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}
