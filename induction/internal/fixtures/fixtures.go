// Package fixtures loads a YAML description of a depot fleet into a store.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metro-depot/fleet/induction/internal/store"
)

var ErrInvalidFixture = errors.New("invalid fixture")

// Fleet is the top-level fixture document. When Anchor is set, Rebase can
// move every date so that Anchor lands on a chosen day.
type Fleet struct {
	Anchor       *time.Time               `yaml:"anchor"`
	StablingBays []store.StablingBayInput `yaml:"stabling_bays"`
	Trainsets    []Trainset               `yaml:"trainsets"`
}

type Trainset struct {
	store.TrainsetInput `yaml:",inline"`
	Certificates        []store.CertificateInput  `yaml:"certificates"`
	JobCards            []store.JobCardInput      `yaml:"job_cards"`
	Branding            []store.BrandingInput     `yaml:"branding"`
	CleaningSlots       []store.CleaningSlotInput `yaml:"cleaning_slots"`
	Mileage             []store.MileageInput      `yaml:"mileage"`
}

// Counts reports how many records a Load created.
type Counts struct {
	StablingBays   int `json:"stabling_bays"`
	Trainsets      int `json:"trainsets"`
	Certificates   int `json:"certificates"`
	JobCards       int `json:"job_cards"`
	Branding       int `json:"branding"`
	CleaningSlots  int `json:"cleaning_slots"`
	MileageRecords int `json:"mileage_records"`
}

func ReadFile(path string) (Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fleet{}, fmt.Errorf("read fixture %q: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Fleet, error) {
	var f Fleet
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fleet{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	seen := map[string]bool{}
	for i, ts := range f.Trainsets {
		if ts.Number == "" {
			return Fleet{}, fmt.Errorf("%w: trainset %d has no number", ErrInvalidFixture, i)
		}
		if seen[ts.Number] {
			return Fleet{}, fmt.Errorf("%w: duplicate trainset %s", ErrInvalidFixture, ts.Number)
		}
		seen[ts.Number] = true
	}
	return f, nil
}

// Rebase shifts every date in the fleet by the whole days between Anchor and
// day. Without an anchor the fleet is returned unchanged.
func (f Fleet) Rebase(day time.Time) Fleet {
	if f.Anchor == nil {
		return f
	}
	a := *f.Anchor
	anchor := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	target := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	days := int(target.Sub(anchor).Hours() / 24)
	shift := func(t time.Time) time.Time { return t.AddDate(0, 0, days) }

	out := Fleet{Anchor: &target, StablingBays: f.StablingBays, Trainsets: make([]Trainset, len(f.Trainsets))}
	for i, ts := range f.Trainsets {
		n := Trainset{TrainsetInput: ts.TrainsetInput}
		for _, c := range ts.Certificates {
			c.IssueDate, c.ExpiryDate = shift(c.IssueDate), shift(c.ExpiryDate)
			n.Certificates = append(n.Certificates, c)
		}
		for _, j := range ts.JobCards {
			if !j.CreatedDate.IsZero() {
				j.CreatedDate = shift(j.CreatedDate)
			}
			if j.DueDate != nil {
				due := shift(*j.DueDate)
				j.DueDate = &due
			}
			n.JobCards = append(n.JobCards, j)
		}
		for _, b := range ts.Branding {
			b.ContractStart, b.ContractEnd = shift(b.ContractStart), shift(b.ContractEnd)
			n.Branding = append(n.Branding, b)
		}
		for _, c := range ts.CleaningSlots {
			c.SlotDate = shift(c.SlotDate)
			n.CleaningSlots = append(n.CleaningSlots, c)
		}
		for _, m := range ts.Mileage {
			m.Date = shift(m.Date)
			n.Mileage = append(n.Mileage, m)
		}
		out.Trainsets[i] = n
	}
	return out
}

type LoadOptions struct {
	// Replace clears the store before loading.
	Replace bool
}

// Load writes the fleet through st. It stops at the first failing record.
func Load(ctx context.Context, st store.Store, f Fleet, opts LoadOptions) (Counts, error) {
	var c Counts
	if opts.Replace {
		if err := st.ClearAll(ctx); err != nil {
			return c, fmt.Errorf("clear store: %w", err)
		}
	}
	for _, bay := range f.StablingBays {
		if _, err := st.UpsertStablingBay(ctx, bay); err != nil {
			return c, fmt.Errorf("bay %s: %w", bay.BayNumber, err)
		}
		c.StablingBays++
	}
	for _, ts := range f.Trainsets {
		if _, err := st.CreateTrainset(ctx, ts.TrainsetInput); err != nil {
			return c, fmt.Errorf("trainset %s: %w", ts.Number, err)
		}
		c.Trainsets++
		for _, in := range ts.Certificates {
			if _, err := st.AddCertificate(ctx, ts.Number, in); err != nil {
				return c, fmt.Errorf("trainset %s certificate %s: %w", ts.Number, in.CertificateNumber, err)
			}
			c.Certificates++
		}
		for _, in := range ts.JobCards {
			if _, err := st.AddJobCard(ctx, ts.Number, in); err != nil {
				return c, fmt.Errorf("trainset %s job card %s: %w", ts.Number, in.JobCardNumber, err)
			}
			c.JobCards++
		}
		for _, in := range ts.Branding {
			if _, err := st.AddBrandingContract(ctx, ts.Number, in); err != nil {
				return c, fmt.Errorf("trainset %s branding %s: %w", ts.Number, in.BrandName, err)
			}
			c.Branding++
		}
		for _, in := range ts.CleaningSlots {
			if _, err := st.AddCleaningSlot(ctx, ts.Number, in); err != nil {
				return c, fmt.Errorf("trainset %s cleaning slot: %w", ts.Number, err)
			}
			c.CleaningSlots++
		}
		for _, in := range ts.Mileage {
			if _, err := st.RecordMileage(ctx, ts.Number, in); err != nil {
				return c, fmt.Errorf("trainset %s mileage: %w", ts.Number, err)
			}
			c.MileageRecords++
		}
	}
	return c, nil
}
