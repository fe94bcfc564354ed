package http

import (
	"github.com/listenlab/listening-backend/internal/listening"
	"github.com/listenlab/listening-backend/internal/storage"
)

// Exam-mode payloads omit the is_correct flag entirely; practice mode and
// the bare item route always carry it.

type optionView struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

type questionView struct {
	ID           string       `json:"id"`
	Text         string       `json:"text"`
	QuestionType string       `json:"question_type"`
	ScoreWeight  int          `json:"score_weight"`
	Order        int          `json:"order"`
	Options      []optionView `json:"options"`
	Explanation  string       `json:"explanation"`
}

type itemView struct {
	ID              string         `json:"id"`
	Audio           string         `json:"audio"`
	AudioURL        string         `json:"audio_url"`
	AudioSource     string         `json:"audio_source"`
	Thumbnail       string         `json:"thumbnail"`
	ThumbnailURL    string         `json:"thumbnail_url"`
	ThumbnailSource string         `json:"thumbnail_source"`
	Difficulty      string         `json:"difficulty"`
	TopicTag        string         `json:"topic_tag"`
	Transcript      string         `json:"transcript"`
	ItemType        string         `json:"item_type"`
	Order           int            `json:"order"`
	Questions       []questionView `json:"questions"`
}

func newOptionView(o listening.ChoiceOption, hideCorrect bool) optionView {
	v := optionView{ID: o.ID, Label: o.Label, Text: o.Text}
	if !hideCorrect {
		correct := o.IsCorrect
		v.IsCorrect = &correct
	}
	return v
}

func newQuestionView(q listening.Question, hideCorrect bool) questionView {
	opts := make([]optionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, newOptionView(o, hideCorrect))
	}
	return questionView{
		ID:           q.ID,
		Text:         q.Text,
		QuestionType: q.QuestionType,
		ScoreWeight:  q.ScoreWeight,
		Order:        q.Order,
		Options:      opts,
		Explanation:  q.Explanation,
	}
}

func newItemView(it listening.Item, hideCorrect bool, media storage.MediaStore) itemView {
	qs := make([]questionView, 0, len(it.Questions))
	for _, q := range it.Questions {
		qs = append(qs, newQuestionView(q, hideCorrect))
	}
	return itemView{
		ID:              it.ID,
		Audio:           it.AudioKey,
		AudioURL:        it.AudioURL,
		AudioSource:     mediaSource(it.AudioURL, it.AudioKey, media),
		Thumbnail:       it.ThumbnailKey,
		ThumbnailURL:    it.ThumbnailURL,
		ThumbnailSource: mediaSource(it.ThumbnailURL, it.ThumbnailKey, media),
		Difficulty:      it.Difficulty,
		TopicTag:        it.TopicTag,
		Transcript:      it.Transcript,
		ItemType:        it.ItemType,
		Order:           it.Order,
		Questions:       qs,
	}
}

// mediaSource resolves the dual-source pattern: an external URL wins,
// otherwise a stored key maps to the assets mount, otherwise empty.
func mediaSource(externalURL, key string, media storage.MediaStore) string {
	if externalURL != "" {
		return externalURL
	}
	if key != "" && media != nil {
		return media.URL(key)
	}
	return ""
}
