package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds the static county/state hierarchy and populations.
// It is populated once at start-up and read-only afterwards, apart from the
// series each Unit accumulates during ingestion.
type Registry struct {
	units []*Unit

	statesByCode map[int]ID
	statesByName map[string]ID

	// countiesByCode maps a five-digit FIPS code (state*1000 + county) to its county.
	countiesByCode map[int]ID

	// countiesByName maps state code → county name → county, for population files.
	countiesByName map[int]map[string]ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		statesByCode:   make(map[int]ID),
		statesByName:   make(map[string]ID),
		countiesByCode: make(map[int]ID),
		countiesByName: make(map[int]map[string]ID),
	}
}

// CountyCode combines state and county FIPS parts into one code.
func CountyCode(stateCode, countyCode int) int {
	return stateCode*1000 + countyCode
}

func (r *Registry) unit(id ID) *Unit {
	return r.units[id]
}

func (r *Registry) newUnit(kind Kind, code int, name string) *Unit {
	u := &Unit{
		reg:     r,
		id:      ID(len(r.units)),
		kind:    kind,
		code:    code,
		name:    name,
		parent:  NoParent,
		unknown: NoParent,
	}
	r.units = append(r.units, u)
	return u
}

// AddState registers a state together with its synthetic unknown county.
// Re-adding a known state code returns the existing state.
func (r *Registry) AddState(region, division, code int, name string) *Unit {
	if id, ok := r.statesByCode[code]; ok {
		return r.unit(id)
	}

	s := r.newUnit(KindState, code, name)
	s.Region = region
	s.Division = division
	r.statesByCode[code] = s.id
	r.statesByName[name] = s.id

	// The unknown county shares the state's code and is never indexed by
	// code, so feed lookups can only reach it through the state.
	unk := r.newUnit(KindCounty, code, UnknownCountyName)
	unk.parent = s.id
	s.unknown = unk.id
	s.counties = append(s.counties, unk.id)

	return s
}

// AddCounty registers a county under the state with stateCode. A county whose
// state is unknown stays parent-less and is excluded from state roll-ups.
// The first county registered for a code wins lookups by code.
func (r *Registry) AddCounty(stateCode, countyCode int, name string) *Unit {
	code := CountyCode(stateCode, countyCode)
	c := r.newUnit(KindCounty, code, name)

	if _, ok := r.countiesByCode[code]; !ok {
		r.countiesByCode[code] = c.id
	}

	sid, ok := r.statesByCode[stateCode]
	if !ok {
		return c
	}
	c.parent = sid
	s := r.unit(sid)
	s.counties = append(s.counties, c.id)

	byName, ok := r.countiesByName[stateCode]
	if !ok {
		byName = make(map[string]ID)
		r.countiesByName[stateCode] = byName
	}
	byName[name] = c.id
	return c
}

// ResolveState looks a state up by FIPS code.
func (r *Registry) ResolveState(code int) (*Unit, bool) {
	id, ok := r.statesByCode[code]
	if !ok {
		return nil, false
	}
	return r.unit(id), true
}

// ResolveCounty looks a county up by five-digit FIPS code.
func (r *Registry) ResolveCounty(code int) (*Unit, bool) {
	id, ok := r.countiesByCode[code]
	if !ok {
		return nil, false
	}
	return r.unit(id), true
}

// ResolveStateByName looks a state up by its full name.
func (r *Registry) ResolveStateByName(name string) (*Unit, bool) {
	id, ok := r.statesByName[name]
	if !ok {
		return nil, false
	}
	return r.unit(id), true
}

// ResolveCountyForPopulation finds a county by state code and census area
// name ("Travis County").
func (r *Registry) ResolveCountyForPopulation(stateCode int, countyName string) (*Unit, bool) {
	byName, ok := r.countiesByName[stateCode]
	if !ok {
		return nil, false
	}
	id, ok := byName[countyName]
	if !ok {
		return nil, false
	}
	return r.unit(id), true
}

// StateByAbbr resolves a two-letter postal abbreviation.
func (r *Registry) StateByAbbr(abbr string) (*Unit, bool) {
	name, ok := StateNames[strings.ToUpper(abbr)]
	if !ok {
		return nil, false
	}
	return r.ResolveStateByName(name)
}

// CountyNames lists the county names known for a state, sorted.
func (r *Registry) CountyNames(stateCode int) []string {
	byName := r.countiesByName[stateCode]
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ResolveGeography parses a report geography: a state abbreviation ("TX")
// or a county with its state abbreviation ("Travis County, TX").
func (r *Registry) ResolveGeography(entry string) (*Unit, error) {
	entry = strings.TrimSpace(entry)
	countyName, abbr, isCounty := strings.Cut(entry, ",")
	if !isCounty {
		abbr = entry
	}
	abbr = strings.TrimSpace(abbr)

	state, ok := r.StateByAbbr(abbr)
	if !ok {
		return nil, fmt.Errorf("%q: unknown state abbreviation %q", entry, abbr)
	}
	if !isCounty {
		return state, nil
	}

	countyName = strings.TrimSpace(countyName)
	county, ok := r.ResolveCountyForPopulation(state.code, countyName)
	if !ok {
		return nil, fmt.Errorf("%q: unknown county %q in %s", entry, countyName, state.name)
	}
	return county, nil
}

// States returns every registered state sorted by name.
func (r *Registry) States() []*Unit {
	var out []*Unit
	for _, id := range r.statesByName {
		out = append(out, r.unit(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// StatesWithData returns states that received at least one observation, by name.
func (r *Registry) StatesWithData() []*Unit {
	var out []*Unit
	for _, s := range r.States() {
		if s.HasData() {
			out = append(out, s)
		}
	}
	return out
}

// CountiesWithData returns a state's counties that have both a population
// and observations, sorted by name.
func (r *Registry) CountiesWithData(state *Unit) []*Unit {
	var out []*Unit
	for _, c := range state.Counties() {
		if c.population > 0 && c.HasData() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len returns the number of units in the arena.
func (r *Registry) Len() int { return len(r.units) }
