package aggregate

import (
	"sort"

	"github.com/voyagekit/geotally/internal/model"
)

// Tally folds resolved locations into per-country counts and state sets, and
// keeps rows no strategy could resolve for the failed-lookup report. Built
// fresh per run, owned by the batch driver, never shared.
type Tally struct {
	countries map[string]*countryTally
	failed    []model.LocationQuery
}

type countryTally struct {
	count  int
	states map[string]struct{}
}

// New creates an empty tally
func New() *Tally {
	return &Tally{countries: make(map[string]*countryTally)}
}

// Record folds one resolved row. A row without a country is kept for the
// failed-lookup report instead of being counted.
func (t *Tally) Record(q model.LocationQuery, loc model.ResolvedLocation) {
	if !loc.HasCountry() {
		t.failed = append(t.failed, q)
		return
	}
	c := t.countries[*loc.Country]
	if c == nil {
		c = &countryTally{states: make(map[string]struct{})}
		t.countries[*loc.Country] = c
	}
	c.count++
	if loc.HasState() {
		c.states[*loc.State] = struct{}{}
	}
}

// Summaries returns the aggregate sorted by country name, with states sorted
// alphabetically within each country. The states slice is never nil so an
// empty set serializes as [].
func (t *Tally) Summaries() []model.CountrySummary {
	out := make([]model.CountrySummary, 0, len(t.countries))
	for country, c := range t.countries {
		states := make([]string, 0, len(c.states))
		for state := range c.states {
			states = append(states, state)
		}
		sort.Strings(states)
		out = append(out, model.CountrySummary{
			Country: country,
			Count:   c.count,
			States:  states,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// Failed returns the unresolved rows in input order
func (t *Tally) Failed() []model.LocationQuery {
	return t.failed
}

// Countries returns the number of distinct countries seen
func (t *Tally) Countries() int {
	return len(t.countries)
}

// UniqueStates returns the total number of distinct states across countries
func (t *Tally) UniqueStates() int {
	total := 0
	for _, c := range t.countries {
		total += len(c.states)
	}
	return total
}
