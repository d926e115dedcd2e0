// Command validate checks a locator export for integrity: every record has
// the fields the map needs, coordinates parse and lie on the globe, and, when
// a members dump is given, every record agrees with the member it came from.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -export shared/vmforum_members.json \
//	  -members shared/members_dump.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/member-locator/internal/adapter/export"
	"github.com/couchcryptid/member-locator/internal/adapter/forum"
	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/goccy/go-json"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	exportPath := flag.String("export", "", "path to the exported member list")
	membersPath := flag.String("members", "", "path to the members dump (optional)")
	flag.Parse()

	if *exportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*exportPath, *membersPath); code != 0 {
		os.Exit(code)
	}
}

func run(exportPath, membersPath string) int {
	fmt.Println("=== Member Export Validation ===")
	fmt.Println()

	records, err := loadExport(exportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load export: %v\n", err)
		return 1
	}

	phases := []*phase{validateSchema(records)}

	var members []domain.Member
	if membersPath != "" {
		members, err = forum.MemberFile{Path: membersPath}.Members(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load members dump: %v\n", err)
			return 1
		}
		phases = append(phases, validateParity(records, members))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	if members != nil {
		withLocation := 0
		for _, m := range members {
			if strings.TrimSpace(m.Location) != "" {
				withLocation++
			}
		}
		fmt.Printf("Members: %d in dump, %d with a location, %d exported\n", len(members), withLocation, len(records))
	} else {
		fmt.Printf("Members: %d exported\n", len(records))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadExport(path string) ([]export.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []export.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ── Phase 1: Export schema ──

func validateSchema(records []export.Record) *phase {
	p := &phase{name: "Phase 1: Export Schema"}

	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.ID == "" {
			p.errorf("record %d: missing id", i)
		} else if prev, dup := seen[r.ID]; dup {
			p.errorf("record %d: id %s already used by record %d", i, r.ID, prev)
		} else {
			seen[r.ID] = i
		}
		if r.Name == "" {
			p.errorf("record %d (id %s): missing name", i, r.ID)
		}
		checkCoordinate(p, i, r.ID, "lat", r.Lat, 90)
		checkCoordinate(p, i, r.ID, "lon", r.Lon, 180)
		if r.Radius < domain.RadiusNA {
			p.errorf("record %d (id %s): negative radius %d", i, r.ID, r.Radius)
		}
	}
	return p
}

func checkCoordinate(p *phase, i int, id, field, value string, limit float64) {
	v, err := strconv.ParseFloat(value, 64)
	switch {
	case err != nil:
		p.errorf("record %d (id %s): %s %q is not a number", i, id, field, value)
	case v < -limit || v > limit:
		p.errorf("record %d (id %s): %s %v out of range", i, id, field, v)
	}
}

// ── Phase 2: Dump parity ──

func validateParity(records []export.Record, members []domain.Member) *phase {
	p := &phase{name: "Phase 2: Dump Parity (export vs members)"}

	byUID := make(map[string]domain.Member, len(members))
	for _, m := range members {
		byUID[m.UID] = m
	}

	for i, r := range records {
		m, ok := byUID[r.ID]
		if !ok {
			p.errorf("record %d: id %s not in members dump", i, r.ID)
			continue
		}
		if strings.TrimSpace(m.Location) == "" {
			p.errorf("record %d (id %s): member has no location but was exported", i, r.ID)
		}
		for _, f := range []struct{ name, got, want string }{
			{"name", r.Name, m.Name},
			{"vm", r.VM, m.VM},
			{"tr", r.TR, m.TR},
			{"lr", r.LR, m.LR},
			{"other", r.Other, m.Other},
		} {
			if f.got != f.want {
				p.errorf("record %d (id %s): %s=%q, dump has %q", i, r.ID, f.name, f.got, f.want)
			}
		}
	}
	return p
}
