// Package rosterio loads the flat CSV files that describe a scenario: the
// unit stat roster and the starting placement of each unit on the board.
package rosterio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kharnhold/tacticsrl/pkg/tactics"
)

// rosterColumns is the expected header of a unit roster CSV, in order.
var rosterColumns = []string{
	"name", "count", "movement", "ws", "bs", "t", "wounds", "total_w",
	"attacks", "ld", "sv", "inv",
	"ranged_range", "ranged_strength", "ranged_ap", "ranged_damage", "ranged_shots", "ranged_rapid", "ranged_heavy",
	"melee_strength", "melee_ap", "melee_damage",
}

// LoadRoster reads a unit stats CSV into UnitTemplates. Malformed numeric
// fields and a header mismatch are data-integrity errors surfaced with
// the offending row number.
func LoadRoster(path string) ([]tactics.UnitTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rosterio: open roster %s: %w", path, err)
	}
	defer f.Close()
	return ParseRoster(f)
}

// ParseRoster is the io.Reader-based core of LoadRoster, split out so
// tests can feed it in-memory CSV text.
func ParseRoster(r io.Reader) ([]tactics.UnitTemplate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(rosterColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("rosterio: read roster header: %w", err)
	}
	if err := checkHeader(header, rosterColumns); err != nil {
		return nil, fmt.Errorf("rosterio: roster header: %w", err)
	}

	var out []tactics.UnitTemplate
	row := 1
	for {
		row++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rosterio: roster row %d: %w", row, err)
		}

		t, err := parseRosterRow(rec)
		if err != nil {
			return nil, fmt.Errorf("rosterio: roster row %d (%s): %w", row, rec[0], err)
		}
		out = append(out, t)
	}
	return out, nil
}

func parseRosterRow(rec []string) (tactics.UnitTemplate, error) {
	ints := make([]int, 0, len(rec)-1)
	for i := 1; i < len(rec); i++ {
		if i == 17 || i == 18 { // ranged_rapid, ranged_heavy are booleans
			continue
		}
		v, err := strconv.Atoi(rec[i])
		if err != nil {
			return tactics.UnitTemplate{}, fmt.Errorf("field %q: %w", rosterColumns[i], err)
		}
		ints = append(ints, v)
	}
	rapid, err := strconv.ParseBool(rec[17])
	if err != nil {
		return tactics.UnitTemplate{}, fmt.Errorf("field %q: %w", rosterColumns[17], err)
	}
	heavy, err := strconv.ParseBool(rec[18])
	if err != nil {
		return tactics.UnitTemplate{}, fmt.Errorf("field %q: %w", rosterColumns[18], err)
	}

	return tactics.UnitTemplate{
		Name:     rec[0],
		Count:    ints[0],
		Movement: ints[1],
		WS:       ints[2],
		BS:       ints[3],
		T:        ints[4],
		Wounds:   ints[5],
		TotalW:   ints[6],
		Attacks:  ints[7],
		Ld:       ints[8],
		Sv:       ints[9],
		Inv:      ints[10],
		Ranged: tactics.RangedWeapon{
			Range:    ints[11],
			Strength: ints[12],
			AP:       ints[13],
			Damage:   ints[14],
			Shots:    ints[15],
			IsRapid:  rapid,
			IsHeavy:  heavy,
		},
		Melee: tactics.MeleeWeapon{
			Strength: ints[16],
			AP:       ints[17],
			Damage:   ints[18],
		},
	}, nil
}

var placementColumns = []string{"unit_name", "team", "x", "y"}

// LoadPlacements reads a starting-placement CSV.
func LoadPlacements(path string) ([]tactics.Placement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rosterio: open placements %s: %w", path, err)
	}
	defer f.Close()
	return ParsePlacements(f)
}

// ParsePlacements is the io.Reader-based core of LoadPlacements.
func ParsePlacements(r io.Reader) ([]tactics.Placement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(placementColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("rosterio: read placements header: %w", err)
	}
	if err := checkHeader(header, placementColumns); err != nil {
		return nil, fmt.Errorf("rosterio: placements header: %w", err)
	}

	var out []tactics.Placement
	row := 1
	for {
		row++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("rosterio: placements row %d: %w", row, err)
		}

		team, err := parseTeam(rec[1])
		if err != nil {
			return nil, fmt.Errorf("rosterio: placements row %d: %w", row, err)
		}
		x, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("rosterio: placements row %d: field %q: %w", row, "x", err)
		}
		y, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("rosterio: placements row %d: field %q: %w", row, "y", err)
		}

		out = append(out, tactics.Placement{UnitName: rec[0], Team: team, X: x, Y: y})
	}
	return out, nil
}

func parseTeam(s string) (tactics.Team, error) {
	switch s {
	case "A", "a", "0":
		return tactics.TeamA, nil
	case "B", "b", "1":
		return tactics.TeamB, nil
	default:
		return 0, fmt.Errorf("unrecognized team %q, want A or B", s)
	}
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("column %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	return nil
}
