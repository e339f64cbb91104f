package normalize

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gyeh/hccscore/internal/model"
)

// FileHash computes the hex-encoded SHA-256 of the file at path.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// RowHash computes a stable SHA-256 over the canonical content of a row.
// Fields are sorted by key name then concatenated with null separators.
func RowHash(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(fields[k]))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}

// MemberHash fingerprints everything about a member that can influence its
// score. Two runs that saw the same input produce the same hash.
func MemberHash(m *model.MemberInput) string {
	dx := append([]string(nil), m.Diagnoses...)
	sort.Strings(dx)
	sum := RowHash(map[string]string{
		"member_id":         m.MemberID,
		"date_of_birth":     m.DateOfBirth.Format("2006-01-02"),
		"sex":               m.Sex,
		"tier":              m.Tier,
		"enrollment_months": strconv.Itoa(m.EnrollmentMonths),
		"diagnoses":         strings.Join(dx, ","),
	})
	return fmt.Sprintf("%x", sum)
}
