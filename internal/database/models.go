package database

// Calendar entry statuses.
const (
	StatusIdea      = "idea"
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
)

// CalendarEntry is a planned post on an owner's content calendar.
type CalendarEntry struct {
	ID            string  `json:"id"`
	Owner         string  `json:"-"`
	PostID        int64   `json:"post_id"`
	Title         string  `json:"title"`
	ScheduledDate string  `json:"scheduled_date"`
	Status        string  `json:"status"`
	Notes         *string `json:"notes,omitempty"`
	CreatedAt     *string `json:"created_at,omitempty"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
}

// PageAnalysis is a stored SEO audit of one URL.
type PageAnalysis struct {
	ID         int64
	Owner      string
	URL        string
	Score      int
	Payload    string
	AnalyzedAt *string
}

// KeywordRank is the last known search position of a keyword.
type KeywordRank struct {
	ID        int64   `json:"-"`
	Owner     string  `json:"-"`
	Keyword   string  `json:"keyword"`
	Position  int     `json:"position"`
	URL       *string `json:"url,omitempty"`
	CheckedAt *string `json:"checked_at,omitempty"`
}

// IngestionRun records one ingestion pass and its headline statistics.
type IngestionRun struct {
	ID         string `json:"id"`
	Site       string `json:"site"`
	StartedAt  string `json:"started_at"`
	Posts      int    `json:"posts"`
	Categories int    `json:"categories"`
	Keywords   int    `json:"keywords"`
	Pages      int    `json:"pages"`
	Requests   int    `json:"requests"`
	Retries    int    `json:"retries"`
	StopReason string `json:"stop_reason"`
	UsedFeed   bool   `json:"used_feed"`
	GapRate    int    `json:"gap_rate"`
	Diversity  int    `json:"diversity"`
	AvgWords   int    `json:"avg_words"`
	GrowthRate int    `json:"growth_rate"`
}

// TreatmentCoverage is the frequency of one treatment in one run.
type TreatmentCoverage struct {
	RunID     string `json:"run_id"`
	Treatment string `json:"treatment"`
	Frequency int    `json:"frequency"`
}

// Report is the composed markdown report for a date.
type Report struct {
	ID           int64
	Date         string
	Site         string
	Summary      string
	BodyMarkdown string
	PostCount    int
	GapRate      int
	Source       *string
	GeneratedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	IngestionRuns   int    `json:"ingestion_runs"`
	Reports         int    `json:"reports"`
	CalendarEntries int    `json:"calendar_entries"`
	PageAnalyses    int    `json:"page_analyses"`
	KeywordRanks    int    `json:"keyword_ranks"`
	LastRunAt       string `json:"last_run_at"`
}
