// Package classifier assigns every loaded table to a feedback category from
// its filename and column headers.
package classifier

import (
	"fmt"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/keywords"
)

// Rule identifies which step of the decision chain produced a category.
type Rule int

const (
	RuleFilenameDelegate Rule = iota + 1
	RuleFilenamePartner
	RuleFilenameMaster
	RuleDelegateColumns
	RulePartnerColumns
	RuleRowCount
	RuleDefault
)

func (r Rule) String() string {
	switch r {
	case RuleFilenameDelegate:
		return "filename_delegate"
	case RuleFilenamePartner:
		return "filename_partner"
	case RuleFilenameMaster:
		return "filename_master"
	case RuleDelegateColumns:
		return "delegate_columns"
	case RulePartnerColumns:
		return "partner_columns"
	case RuleRowCount:
		return "row_count"
	case RuleDefault:
		return "default"
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// Decision explains a classification.
type Decision struct {
	Category dataset.Category `json:"category"`
	Rule     Rule             `json:"-"`
	RuleName string           `json:"rule"`
	Matched  []string         `json:"matched,omitempty"`
	Score    int              `json:"score,omitempty"`
}

const (
	// DelegateColumnThreshold is the minimum distinct delegate keywords in headers.
	DelegateColumnThreshold = 2
	// PartnerColumnThreshold is the minimum distinct partner keywords in headers.
	PartnerColumnThreshold = 1
	// MasterRowThreshold is the row count above which an unlabelled table is master data.
	MasterRowThreshold = 50
)

var (
	delegateFilename = keywords.NewSet("delegate", "participant", "student", "attendee", "tutor", "trainer")
	partnerFilename  = keywords.NewSet("partner", "company", "organization", "client")
	masterFilename   = keywords.NewSet("master", "all", "combined", "complete", "full")

	delegateColumns = keywords.NewSet("course", "rating", "tutor", "trainer", "presenter")
	partnerColumns  = keywords.NewSet("company", "organisation", "organization", "business")
)

// Classify returns the category for a table uploaded under filename.
// It never fails; a nil table is treated as empty.
func Classify(table *dataset.Table, filename string) dataset.Category {
	return Explain(table, filename).Category
}

// Explain runs the decision chain and reports which rule fired. Filename
// hints are checked first in delegate, partner, master order; then header
// keyword scores; then table size; delegate is the fallback.
func Explain(table *dataset.Table, filename string) Decision {
	filenameRules := []struct {
		set      *keywords.Set
		category dataset.Category
		rule     Rule
	}{
		{delegateFilename, dataset.CategoryDelegate, RuleFilenameDelegate},
		{partnerFilename, dataset.CategoryPartner, RuleFilenamePartner},
		{masterFilename, dataset.CategoryMaster, RuleFilenameMaster},
	}
	for _, fr := range filenameRules {
		if hits := fr.set.Find(filename); len(hits) > 0 {
			return decide(fr.category, fr.rule, hits, 0)
		}
	}

	var columns []string
	if table != nil {
		columns = table.Columns
	}

	if hits := delegateColumns.FindAny(columns); len(hits) >= DelegateColumnThreshold {
		return decide(dataset.CategoryDelegate, RuleDelegateColumns, hits, len(hits))
	}
	if hits := partnerColumns.FindAny(columns); len(hits) >= PartnerColumnThreshold {
		return decide(dataset.CategoryPartner, RulePartnerColumns, hits, len(hits))
	}
	if rows := table.Len(); rows > MasterRowThreshold {
		return decide(dataset.CategoryMaster, RuleRowCount, nil, rows)
	}
	return decide(dataset.CategoryDelegate, RuleDefault, nil, 0)
}

func decide(c dataset.Category, r Rule, matched []string, score int) Decision {
	return Decision{Category: c, Rule: r, RuleName: r.String(), Matched: matched, Score: score}
}
