package keywords

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Find(t *testing.T) {
	set := NewSet("course", "rating", "Tutor", "trainer", "presenter", "tutor")

	t.Run("normalizes dictionary", func(t *testing.T) {
		assert.Equal(t, []string{"course", "rating", "tutor", "trainer", "presenter"}, set.Words())
	})

	t.Run("case insensitive substring", func(t *testing.T) {
		assert.Equal(t, []string{"course", "rating"}, set.Find("Please give the COURSE a Rating out of 5"))
	})

	t.Run("distinct hits", func(t *testing.T) {
		assert.Equal(t, []string{"tutor"}, set.Find("tutor tutor tutor"))
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, set.Find("Company Name"))
		assert.False(t, set.Contains(""))
	})

	t.Run("across texts", func(t *testing.T) {
		got := set.FindAny([]string{"Trainer Name", "Course", "Trainer Email"})
		assert.Equal(t, []string{"course", "trainer"}, got)
	})
}

func TestSet_FirstColumn(t *testing.T) {
	set := NewSet("date", "completion", "submitted", "time")
	cols := []string{"Name", "Start time", "Completion date"}

	col, ok := set.FirstColumn(cols, nil)
	assert.True(t, ok)
	assert.Equal(t, "Start time", col)

	col, ok = set.FirstColumn(cols, func(c string) bool { return c == "Start time" })
	assert.True(t, ok)
	assert.Equal(t, "Completion date", col)

	_, ok = set.FirstColumn([]string{"Name"}, nil)
	assert.False(t, ok)
}

func TestSet_ConcurrentFind(t *testing.T) {
	set := NewSet("partner", "company")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"company"}, set.Find("company_feedback.xlsx"))
		}()
	}
	wg.Wait()
}

func TestSet_Empty(t *testing.T) {
	set := NewSet()
	assert.Nil(t, set.Find("anything"))
}
