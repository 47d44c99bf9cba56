package classifier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/feedback-insights/internal/domain/survey/dataset"
)

func tableWith(rows int, columns ...string) *dataset.Table {
	t := dataset.New(columns...)
	for i := range rows {
		row := make([]dataset.Value, len(columns))
		for j := range row {
			row[j] = dataset.String(fmt.Sprintf("v%d", i))
		}
		t.AppendRow(row)
	}
	return t
}

func TestClassify_Filename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		table    *dataset.Table
		want     dataset.Category
		rule     Rule
	}{
		{
			name:     "trainer feedback wins regardless of columns",
			filename: "trainer_feedback.xlsx",
			table:    tableWith(100, "Company", "Business Unit"),
			want:     dataset.CategoryDelegate,
			rule:     RuleFilenameDelegate,
		},
		{
			name:     "partner keyword",
			filename: "Client Survey 2024.xlsx",
			table:    tableWith(3, "Course", "Rating"),
			want:     dataset.CategoryPartner,
			rule:     RuleFilenamePartner,
		},
		{
			name:     "master keyword",
			filename: "COMBINED-export.xlsx",
			table:    tableWith(3, "Course", "Rating"),
			want:     dataset.CategoryMaster,
			rule:     RuleFilenameMaster,
		},
		{
			name:     "delegate beats partner and master",
			filename: "all_partner_attendee.xlsx",
			table:    tableWith(1, "x"),
			want:     dataset.CategoryDelegate,
			rule:     RuleFilenameDelegate,
		},
		{
			name:     "partner beats master",
			filename: "company_full.csv",
			table:    tableWith(1, "x"),
			want:     dataset.CategoryPartner,
			rule:     RuleFilenamePartner,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Explain(tt.table, tt.filename)
			assert.Equal(t, tt.want, d.Category)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.want, Classify(tt.table, tt.filename))
		})
	}
}

func TestClassify_Content(t *testing.T) {
	t.Run("company column makes partner", func(t *testing.T) {
		d := Explain(tableWith(5, "Company", "Rating"), "jan_upload.xlsx")
		assert.Equal(t, dataset.CategoryPartner, d.Category)
		assert.Equal(t, RulePartnerColumns, d.Rule)
		assert.Equal(t, []string{"company"}, d.Matched)
	})

	t.Run("two delegate keywords make delegate", func(t *testing.T) {
		d := Explain(tableWith(80, "Course Title", "Presenter", "Company"), "jan_upload.xlsx")
		assert.Equal(t, dataset.CategoryDelegate, d.Category)
		assert.Equal(t, RuleDelegateColumns, d.Rule)
		assert.Equal(t, 2, d.Score)
	})

	t.Run("repeated keyword counts once", func(t *testing.T) {
		d := Explain(tableWith(80, "Trainer 1", "Trainer 2"), "jan_upload.xlsx")
		assert.Equal(t, dataset.CategoryMaster, d.Category)
		assert.Equal(t, RuleRowCount, d.Rule)
	})

	t.Run("large unlabelled table is master", func(t *testing.T) {
		assert.Equal(t, dataset.CategoryMaster, Classify(tableWith(60, "Name", "Score"), "jan_upload.xlsx"))
	})

	t.Run("exactly fifty rows falls back to delegate", func(t *testing.T) {
		d := Explain(tableWith(50, "Name", "Score"), "jan_upload.xlsx")
		assert.Equal(t, dataset.CategoryDelegate, d.Category)
		assert.Equal(t, RuleDefault, d.Rule)
	})

	t.Run("nil and empty tables", func(t *testing.T) {
		assert.Equal(t, dataset.CategoryDelegate, Classify(nil, ""))
		assert.Equal(t, dataset.CategoryDelegate, Classify(dataset.New(), "sheet.xlsx"))
	})
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "row_count", RuleRowCount.String())
	assert.Equal(t, "rule(99)", Rule(99).String())
}
