package analytics

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	// MinProfileSessions is the row count a trainer needs for a profile.
	MinProfileSessions = 3
	// MinRadarMetrics is the number of metrics a radar needs to be drawn.
	MinRadarMetrics = 3
	// MaxHighlightQuotes caps HighlightQuotes.
	MaxHighlightQuotes = 3
	// MaxProfileComments caps the comment sample kept on a profile.
	MaxProfileComments = 10
	// minQuoteLength is the length a comment must exceed to be quoted.
	minQuoteLength = 10
)

// Order is a sort direction.
type Order string

const (
	OrderAscending  Order = "asc"
	OrderDescending Order = "desc"
)

// TrainerRating is one entry of the trainer comparison.
type TrainerRating struct {
	Trainer   string  `json:"trainer"`
	Mean      float64 `json:"mean"`
	Responses int     `json:"responses"`
}

// TrainerProfile is the detailed view of a trainer with enough sessions.
type TrainerProfile struct {
	Trainer  string             `json:"trainer"`
	Sessions int                `json:"sessions"`
	Overall  float64            `json:"overall"`
	Level    string             `json:"level"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Comments []string           `json:"comments,omitempty"`
}

// RadarMetric is one axis of the metric radar.
type RadarMetric struct {
	Name   string  `json:"name"`
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
}

// trainerRows groups row indexes by trainer, keeping first-seen order.
// Rows without a trainer are dropped.
func (e *Engine) trainerRows() ([]string, map[string][]int) {
	if e.schema.Trainer == "" {
		return nil, nil
	}
	var names []string
	rows := make(map[string][]int)
	for i, v := range e.table.Column(e.schema.Trainer) {
		if v.IsMissing() {
			continue
		}
		name := v.String()
		if _, ok := rows[name]; !ok {
			names = append(names, name)
		}
		rows[name] = append(rows[name], i)
	}
	return names, rows
}

// Trainers returns the distinct trainer names in first-seen order.
func (e *Engine) Trainers() []string {
	names, _ := e.trainerRows()
	return names
}

// TrainerComparison returns the mean rating of every trainer with at least
// one numeric rating, sorted by mean in the given order with ties broken by
// name. There is no minimum session count.
func (e *Engine) TrainerComparison(order Order) []TrainerRating {
	names, rows := e.trainerRows()
	out := make([]TrainerRating, 0, len(names))
	for _, name := range names {
		ratings := e.ratingsFor(rows[name])
		if len(ratings) == 0 {
			continue
		}
		out = append(out, TrainerRating{Trainer: name, Mean: Mean(ratings), Responses: len(rows[name])})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			if order == OrderAscending {
				return out[i].Mean < out[j].Mean
			}
			return out[i].Mean > out[j].Mean
		}
		return out[i].Trainer < out[j].Trainer
	})
	return out
}

// TrainerProfiles returns a profile for every trainer with at least
// MinProfileSessions rows, best overall rating first.
func (e *Engine) TrainerProfiles() []TrainerProfile {
	names, rows := e.trainerRows()
	var out []TrainerProfile
	for _, name := range names {
		if len(rows[name]) < MinProfileSessions {
			continue
		}
		out = append(out, e.profile(name, rows[name]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Overall != out[j].Overall {
			return out[i].Overall > out[j].Overall
		}
		return out[i].Trainer < out[j].Trainer
	})
	return out
}

// TrainerProfile returns the profile for one trainer, matched exactly.
// It reports false for unknown trainers and those below MinProfileSessions.
func (e *Engine) TrainerProfile(name string) (TrainerProfile, bool) {
	_, rows := e.trainerRows()
	r, ok := rows[name]
	if !ok || len(r) < MinProfileSessions {
		return TrainerProfile{}, false
	}
	return e.profile(name, r), true
}

func (e *Engine) profile(name string, rows []int) TrainerProfile {
	overall := Mean(e.ratingsFor(rows))
	p := TrainerProfile{
		Trainer:  name,
		Sessions: len(rows),
		Overall:  overall,
		Level:    PerformanceLevel(overall),
		Comments: e.comments(rows, MaxProfileComments),
	}
	for _, m := range e.schema.SubMetrics {
		if mean, ok := e.columnMean(m.Column, rows); ok {
			if p.Metrics == nil {
				p.Metrics = make(map[string]float64)
			}
			p.Metrics[m.Name] = mean
		}
	}
	return p
}

// FindTrainer resolves a loosely typed name to a known trainer: an exact
// case-insensitive match first, then the closest fuzzy match.
func (e *Engine) FindTrainer(query string) (string, bool) {
	query = strings.TrimSpace(query)
	names := e.Trainers()
	if query == "" || len(names) == 0 {
		return "", false
	}
	for _, n := range names {
		if strings.EqualFold(n, query) {
			return n, true
		}
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	if len(ranks) == 0 {
		return "", false
	}
	sort.Sort(ranks)
	return ranks[0].Target, true
}

// TrainerComments returns up to limit non-blank comments for a trainer, or
// for every row when trainer is "". A limit of 0 means no limit.
func (e *Engine) TrainerComments(trainer string, limit int) []string {
	if trainer == "" {
		return e.comments(nil, limit)
	}
	_, rows := e.trainerRows()
	r, ok := rows[trainer]
	if !ok {
		return nil
	}
	return e.comments(r, limit)
}

// HighlightQuotes returns up to MaxHighlightQuotes comments longer than ten
// characters for a trainer, or for every row when trainer is "".
func (e *Engine) HighlightQuotes(trainer string) []string {
	var out []string
	for _, c := range e.TrainerComments(trainer, 0) {
		if len([]rune(c)) > minQuoteLength {
			out = append(out, c)
			if len(out) == MaxHighlightQuotes {
				break
			}
		}
	}
	return out
}

func (e *Engine) comments(rows []int, limit int) []string {
	if e.schema.Comments == "" {
		return nil
	}
	values := e.table.Column(e.schema.Comments)
	var out []string
	add := func(i int) bool {
		if s := strings.TrimSpace(values[i].String()); s != "" {
			out = append(out, s)
		}
		return limit > 0 && len(out) >= limit
	}
	if rows == nil {
		for i := range values {
			if add(i) {
				break
			}
		}
		return out
	}
	for _, i := range rows {
		if add(i) {
			break
		}
	}
	return out
}

// MetricRadar returns the mean of each radar metric for a trainer, or for
// every row when trainer is "". It reports false when fewer than
// MinRadarMetrics metrics have numeric data.
func (e *Engine) MetricRadar(trainer string) ([]RadarMetric, bool) {
	var rows []int
	if trainer != "" {
		_, byTrainer := e.trainerRows()
		r, ok := byTrainer[trainer]
		if !ok {
			return nil, false
		}
		rows = r
	}
	var out []RadarMetric
	for _, m := range e.schema.Radar {
		if mean, ok := e.columnMean(m.Column, rows); ok {
			out = append(out, RadarMetric{Name: m.Name, Column: m.Column, Mean: mean})
		}
	}
	if len(out) < MinRadarMetrics {
		return nil, false
	}
	return out, true
}
