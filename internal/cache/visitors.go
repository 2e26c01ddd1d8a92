package cache

import (
	"sort"
	"strings"
	"sync"
)

// Visitors counts landing page hits per country.
type Visitors struct {
	mu        sync.Mutex
	total     int
	countries map[string]int
}

func NewVisitors() *Visitors {
	return &Visitors{countries: map[string]int{}}
}

// Record counts one visit. An empty country is recorded as "Unknown".
func (v *Visitors) Record(country string) {
	country = strings.TrimSpace(country)
	if country == "" {
		country = "Unknown"
	}
	v.mu.Lock()
	v.total++
	v.countries[country]++
	v.mu.Unlock()
}

// CountryCount is one row of the visitor ranking.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// VisitorStats is a point-in-time copy of the counters.
type VisitorStats struct {
	Total     int            `json:"total_visitors"`
	Countries map[string]int `json:"countries"`
	Ranking   []CountryCount `json:"ranking"`
}

// Snapshot copies the counters, ranking countries by count descending and
// then by code.
func (v *Visitors) Snapshot() VisitorStats {
	v.mu.Lock()
	st := VisitorStats{Total: v.total, Countries: make(map[string]int, len(v.countries))}
	for k, n := range v.countries {
		st.Countries[k] = n
	}
	v.mu.Unlock()

	st.Ranking = make([]CountryCount, 0, len(st.Countries))
	for k, n := range st.Countries {
		st.Ranking = append(st.Ranking, CountryCount{Country: k, Count: n})
	}
	sort.Slice(st.Ranking, func(i, j int) bool {
		if st.Ranking[i].Count != st.Ranking[j].Count {
			return st.Ranking[i].Count > st.Ranking[j].Count
		}
		return st.Ranking[i].Country < st.Ranking[j].Country
	})
	return st
}
