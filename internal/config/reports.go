package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Reports lists the report sets to build in one run.
//
//	us: true
//	state_detail: [TX, WA]
//	custom:
//	  metros: ["Travis County, TX", "King County, WA", "NY"]
type Reports struct {
	// US builds one report across every state with data.
	US bool `yaml:"us"`
	// StateDetail builds one report per state abbreviation, covering that
	// state's counties.
	StateDetail []string `yaml:"state_detail" validate:"dive,len=2,alpha"`
	// Custom maps a report name to state abbreviations and "County, ST" entries.
	Custom map[string][]string `yaml:"custom" validate:"dive,keys,required,excludesall=/\\,endkeys,min=1,dive,required"`
}

// DefaultReports is used when no reports file is configured.
func DefaultReports() *Reports {
	return &Reports{US: true}
}

// LoadReports reads and validates a YAML reports file. An empty path yields
// DefaultReports.
func LoadReports(path string) (*Reports, error) {
	if path == "" {
		return DefaultReports(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reports file: %w", err)
	}
	return ParseReports(data)
}

// ParseReports decodes and validates a YAML reports document.
func ParseReports(data []byte) (*Reports, error) {
	var r Reports
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse reports file: %w", err)
	}

	for i, abbr := range r.StateDetail {
		r.StateDetail[i] = strings.ToUpper(strings.TrimSpace(abbr))
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the report definition's shape. Whether the named states
// and counties exist is checked later against the loaded geography.
func (r *Reports) Validate() error {
	if !r.US && len(r.StateDetail) == 0 && len(r.Custom) == 0 {
		return errors.New("reports: nothing to build, set us, state_detail or custom")
	}

	if err := validator.New().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("reports: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("reports: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// CustomNames returns the custom report names, sorted.
func (r *Reports) CustomNames() []string {
	names := make([]string, 0, len(r.Custom))
	for n := range r.Custom {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
