// Package seed imports geographic reference data from a Markdown table of the
// form
//
//	| code | wilaya | daira |
//	|------|--------|-------|
//	| 16   | Alger  | Bab El Oued |
//
// Wilaya ids are the decimal code. Daira ids are assigned sequentially in file
// order starting at 1, so the same file always yields the same ids.
package seed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/repo"
)

// Geo is the parsed content of a reference-data table.
type Geo struct {
	Wilayas []domain.Wilaya
	Dairas  []domain.Daira
}

// ParseGeoMarkdown reads table rows from r. Header and separator rows are
// skipped, as is any row whose first cell is not a positive integer. A row
// with an empty daira cell only declares the wilaya.
func ParseGeoMarkdown(r io.Reader) (*Geo, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	out := &Geo{}
	seenWilaya := make(map[int]int) // code -> index in out.Wilayas
	seenDaira := make(map[string]struct{})
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			continue
		}
		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if len(cells) < 2 {
			continue
		}
		code, err := strconv.Atoi(cells[0])
		if err != nil || code <= 0 {
			continue
		}
		wName := cells[1]
		if wName == "" {
			return nil, fmt.Errorf("line %d: empty wilaya name", lineNo)
		}
		wid := strconv.Itoa(code)
		if i, ok := seenWilaya[code]; ok {
			if out.Wilayas[i].Name != wName {
				return nil, fmt.Errorf("line %d: wilaya %d named both %q and %q", lineNo, code, out.Wilayas[i].Name, wName)
			}
		} else {
			seenWilaya[code] = len(out.Wilayas)
			out.Wilayas = append(out.Wilayas, domain.Wilaya{ID: wid, Name: wName, Code: code})
		}

		if len(cells) < 3 || cells[2] == "" {
			continue
		}
		key := wid + "/" + strings.ToLower(cells[2])
		if _, dup := seenDaira[key]; dup {
			continue
		}
		seenDaira[key] = struct{}{}
		out.Dairas = append(out.Dairas, domain.Daira{
			ID:       strconv.Itoa(len(out.Dairas) + 1),
			Name:     cells[2],
			WilayaID: wid,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadGeoFile imports the table at path when the wilayas table is empty.
// It returns the number of inserted rows; 0 with a nil error means the data
// was already present.
func LoadGeoFile(ctx context.Context, db *gorm.DB, path string) (int64, error) {
	n, err := repo.CountWilayas(ctx, db)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Debug().Int64("wilayas", n).Msg("geo seed skipped: reference data present")
		return 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	geo, err := ParseGeoMarkdown(f)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	inserted, err := repo.InsertGeoIgnoringExisting(ctx, db, geo.Wilayas, geo.Dairas)
	if err != nil {
		return 0, err
	}
	log.Info().
		Str("path", path).
		Int("wilayas", len(geo.Wilayas)).
		Int("dairas", len(geo.Dairas)).
		Int64("inserted", inserted).
		Msg("geo reference data seeded")
	return inserted, nil
}
