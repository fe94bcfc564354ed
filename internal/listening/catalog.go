package listening

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidateTest checks a catalog write before it touches storage.
// Questions without exactly one correct option are rejected here so that
// scoring never has to deal with an ambiguous answer key.
func ValidateTest(t *Test) error {
	verr := newValidationError()
	if t.Title == "" {
		verr.add("title", "required")
	}
	seenOrder := map[int]bool{}
	for i := range t.Items {
		it := &t.Items[i]
		prefix := fmt.Sprintf("items[%d]", i)
		if !ValidItemType(it.ItemType) {
			verr.add(prefix+".item_type", "must be lecture or conversation")
		}
		if !ValidDifficulty(it.Difficulty) {
			verr.add(prefix+".difficulty", "must be easy, medium or hard")
		}
		if it.Order <= 0 {
			verr.add(prefix+".order", "must be positive")
		} else if seenOrder[it.Order] {
			verr.add(prefix+".order", "duplicate within test")
		} else {
			seenOrder[it.Order] = true
		}
		if it.AudioKey != "" && it.AudioURL != "" {
			verr.add(prefix+".audio", "file and external URL are mutually exclusive")
		}
		for j := range it.Questions {
			q := &it.Questions[j]
			qPrefix := fmt.Sprintf("%s.questions[%d]", prefix, j)
			if q.Text == "" {
				verr.add(qPrefix+".text", "required")
			}
			if !ValidCategory(q.QuestionType) {
				verr.add(qPrefix+".question_type", "unknown category")
			}
			correct := 0
			seenLabel := map[string]bool{}
			for k := range q.Options {
				o := &q.Options[k]
				if o.IsCorrect {
					correct++
				}
				if seenLabel[o.Label] {
					verr.add(fmt.Sprintf("%s.options[%d].label", qPrefix, k), "duplicate within question")
				}
				seenLabel[o.Label] = true
			}
			if correct != 1 {
				verr.add(qPrefix+".options", "exactly one option must be correct")
			}
		}
	}
	return verr.orNil()
}

// AssignCatalogIDs fills in missing ids and back-references before storage.
func AssignCatalogIDs(t *Test) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	for i := range t.Items {
		it := &t.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.TestID = t.ID
		for j := range it.Questions {
			q := &it.Questions[j]
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			q.ItemID = it.ID
			if q.ScoreWeight == 0 {
				q.ScoreWeight = 1
			}
			for k := range q.Options {
				o := &q.Options[k]
				if o.ID == "" {
					o.ID = uuid.NewString()
				}
				o.QuestionID = q.ID
			}
		}
	}
}
