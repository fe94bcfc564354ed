package listening

const (
	ModePractice = "practice"
	ModeExam     = "exam"

	StatusActive    = "active"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"

	ItemLecture      = "lecture"
	ItemConversation = "conversation"

	EventFocusLoss = "focus_loss"
	EventReplay    = "replay"
)

// Categories in report order.
var Categories = []string{"main_idea", "detail", "inference", "organization", "pragmatic"}

var Difficulties = []string{"easy", "medium", "hard"}

type Test struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	VersionID  string `json:"version_id"`
	TotalItems int    `json:"total_items"`
	IsActive   bool   `json:"is_active"`
	IsArchived bool   `json:"-"`
	CreatedAt  int64  `json:"-"`
	Items      []Item `json:"items,omitempty"`
}

type Item struct {
	ID           string     `json:"id"`
	TestID       string     `json:"-"`
	ItemType     string     `json:"item_type"`
	Difficulty   string     `json:"difficulty"`
	TopicTag     string     `json:"topic_tag"`
	Transcript   string     `json:"transcript"`
	AudioKey     string     `json:"audio"`     // media-store key; empty when AudioURL is external
	AudioURL     string     `json:"audio_url"` // external source wins over the stored file
	ThumbnailKey string     `json:"thumbnail"`
	ThumbnailURL string     `json:"thumbnail_url"`
	Order        int        `json:"order"`
	Questions    []Question `json:"questions"`
}

type Question struct {
	ID           string         `json:"id"`
	ItemID       string         `json:"-"`
	Text         string         `json:"text"`
	QuestionType string         `json:"question_type"`
	ScoreWeight  int            `json:"score_weight"`
	Order        int            `json:"order"`
	Explanation  string         `json:"explanation"`
	Options      []ChoiceOption `json:"options"`
}

type ChoiceOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"-"`
	Label      string `json:"label"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Order      int    `json:"order"`
}

type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"-"`
	TestID    string `json:"-"`
	Test      Test   `json:"test"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
	StartTime int64  `json:"start_time"`
	EndTime   *int64 `json:"end_time"`
}

type UserAnswer struct {
	SessionID      string
	QuestionID     string
	OptionID       string // empty when cleared / never resolved
	IsCorrect      bool
	ResponseTimeMs *int
	CreatedAt      int64
}

type AntiCheatEvent struct {
	ID         int64
	SessionID  string
	EventType  string
	Count      int
	ExtraJSON  string // free-form JSON object
	OccurredAt int64
}

type ScoreReport struct {
	SessionID    string `json:"session"`
	TotalScore   int    `json:"total_score"`
	MainIdea     int    `json:"main_idea"`
	Detail       int    `json:"detail"`
	Inference    int    `json:"inference"`
	Organization int    `json:"organization"`
	Pragmatic    int    `json:"pragmatic"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

// AnswerResult is what a submission reports back to the client.
// Explanation is blanked in exam mode so answers cannot leak mid-test.
type AnswerResult struct {
	IsCorrect       bool   `json:"is_correct"`
	CorrectOptionID string `json:"correct_option_id"`
	Explanation     string `json:"explanation"`
}

// AnswerDetail backs the per-question breakdown returned by finish.
type AnswerDetail struct {
	QuestionText  string
	QuestionOrder int
	IsCorrect     bool
	CorrectText   string // empty when no option is flagged correct
	SelectedText  string // empty when the answer was cleared
}

func ValidMode(m string) bool { return m == ModePractice || m == ModeExam }

func ValidEventType(t string) bool { return t == EventFocusLoss || t == EventReplay }

func ValidCategory(c string) bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

func ValidDifficulty(d string) bool {
	for _, k := range Difficulties {
		if d == k {
			return true
		}
	}
	return false
}

func ValidItemType(t string) bool { return t == ItemLecture || t == ItemConversation }
