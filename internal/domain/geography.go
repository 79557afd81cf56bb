package domain

import (
	"fmt"
	"time"
)

// Kind distinguishes the geography variants.
type Kind int

const (
	KindCounty Kind = iota
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindCounty:
		return "County"
	case KindState:
		return "State"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ID addresses a Unit inside its Registry.
type ID int

// NoParent marks a county whose state could not be resolved.
const NoParent ID = -1

// NationName is the parent location reported by every state.
const NationName = "US"

// UnknownCountyName names the synthetic per-state bucket for unmatched records.
const UnknownCountyName = "Unknown County"

// Geography is the read-only view shared by counties and states.
type Geography interface {
	Name() string
	Kind() Kind
	Code() int
	Population() int
	ParentName() string
	Current() Observation
	Prior() Observation
	At(date time.Time) Observation
	Observations() []Observation
	HasData() bool
}

// Unit is one arena record. Counties point at their state by ID; states list
// their counties by ID, so the hierarchy holds no ownership cycles.
type Unit struct {
	reg *Registry

	id         ID
	kind       Kind
	code       int
	name       string
	population int

	// State fields: census region and division codes.
	Region   int
	Division int

	parent   ID
	counties []ID
	unknown  ID

	series *Series
}

var _ Geography = (*Unit)(nil)

func (u *Unit) ID() ID { return u.id }
func (u *Unit) Kind() Kind { return u.kind }
func (u *Unit) Code() int { return u.code }
func (u *Unit) Name() string { return u.name }
func (u *Unit) Population() int { return u.population }
func (u *Unit) Current() Observation { return u.series.Current() }
func (u *Unit) Prior() Observation { return u.series.Prior() }
func (u *Unit) HasData() bool { return u.series.Len() > 0 }

func (u *Unit) At(date time.Time) Observation { return u.series.At(date) }

func (u *Unit) Observations() []Observation { return u.series.Observations() }

// ParentName is "US" for states, the owning state's name for counties, and
// empty for orphaned counties.
func (u *Unit) ParentName() string {
	if u.kind == KindState {
		return NationName
	}
	if p := u.Parent(); p != nil {
		return p.name
	}
	return ""
}

// Parent returns the owning state, or nil.
func (u *Unit) Parent() *Unit {
	if u.parent == NoParent {
		return nil
	}
	return u.reg.unit(u.parent)
}

// Location renders "County, State" for counties and the name for states.
func (u *Unit) Location() string {
	if p := u.Parent(); p != nil {
		return u.name + ", " + p.name
	}
	return u.name
}

// UnknownCounty returns a state's synthetic bucket, or nil for counties.
func (u *Unit) UnknownCounty() *Unit {
	if u.kind != KindState {
		return nil
	}
	return u.reg.unit(u.unknown)
}

// Counties returns the counties registered under a state, unknown bucket included.
func (u *Unit) Counties() []*Unit {
	out := make([]*Unit, 0, len(u.counties))
	for _, id := range u.counties {
		out = append(out, u.reg.unit(id))
	}
	return out
}

// SetPopulation assigns the population. A state also assigns it to its
// unknown county so that bucket has a per-capita basis.
func (u *Unit) SetPopulation(population int) {
	if population < 0 {
		population = 0
	}
	u.population = population
	if unk := u.UnknownCounty(); unk != nil {
		unk.population = population
	}
}
