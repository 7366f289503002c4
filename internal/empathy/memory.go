// internal/empathy/memory.go
package empathy

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// Snapshot is one scene-setting phrase captured per classification event.
// Append-only; source material for briefs and summaries.
type Snapshot struct {
	At        time.Time
	Content   string
	Code      emotion.Code
	MessageID types.MessageID
}

// RollingBrief is the frequently refreshed short summary of recent context.
// At most one is active per user; refreshes replace it.
type RollingBrief struct {
	Content    string
	At         time.Time
	EventCount int
	Dominant   emotion.Code
}

// LongSummary is the infrequently refreshed broad summary spanning the whole
// session. Appended, never replaced.
type LongSummary struct {
	Content     string
	At          time.Time
	Duration    time.Duration
	Journey     []emotion.Code
	KeyInsights []string
}

type timelinePoint struct {
	at         time.Time
	code       emotion.Code
	confidence float64
	messageID  types.MessageID
}

type contextSession struct {
	snapshots          []Snapshot
	brief              *RollingBrief
	summaries          []LongSummary
	timeline           []timelinePoint
	briefsSinceSummary int
	lastUpdated        time.Time
}

// ContextManager maintains per-user situational memory at two granularities:
// a rolling brief for reply generation and long summaries for the deep pass,
// so neither needs the full raw history re-sent every time.
type ContextManager struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	sessions map[types.UserID]*contextSession
}

// NewContextManager creates an empty manager.
func NewContextManager(cfg Config) *ContextManager {
	return &ContextManager{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[types.UserID]*contextSession),
	}
}

// AddSnapshot appends one classification event's snapshot and timeline entry,
// then evaluates the brief and summary refresh predicates.
func (m *ContextManager) AddSnapshot(userID types.UserID, text string, code emotion.Code, messageID types.MessageID, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	session, ok := m.sessions[userID]
	if !ok {
		session = &contextSession{}
		m.sessions[userID] = session
	}

	session.snapshots = append(session.snapshots, Snapshot{
		At:        now,
		Content:   text,
		Code:      code,
		MessageID: messageID,
	})
	session.timeline = append(session.timeline, timelinePoint{
		at:         now,
		code:       code,
		confidence: confidence,
		messageID:  messageID,
	})

	if m.shouldRefreshBrief(session, now) {
		m.refreshBrief(session, now)
	}
	if m.shouldSummarize(session, now) {
		m.summarize(session, now)
	}
	session.lastUpdated = now
}

// shouldRefreshBrief: first brief, brief too old, dominant emotion changed
// after a grace period, or enough snapshots accumulated since the brief.
func (m *ContextManager) shouldRefreshBrief(session *contextSession, now time.Time) bool {
	if session.brief == nil {
		return true
	}
	age := now.Sub(session.brief.At)
	if age > m.cfg.BriefMaxAge {
		return true
	}
	if m.emotionChanged(session) && age > m.cfg.BriefChangeAge {
		return true
	}

	accumulated := 0
	for _, s := range session.snapshots {
		if s.At.After(session.brief.At) {
			accumulated++
		}
	}
	return accumulated >= m.cfg.BriefSnapshots
}

func (m *ContextManager) emotionChanged(session *contextSession) bool {
	n := len(session.timeline)
	return n >= 2 && session.timeline[n-1].code != session.timeline[n-2].code
}

func (m *ContextManager) refreshBrief(session *contextSession, now time.Time) {
	recent := tail(session.snapshots, m.cfg.BriefSnapshots)

	parts := make([]string, len(recent))
	for i, s := range recent {
		parts[i] = s.Content
	}

	session.brief = &RollingBrief{
		Content:    truncate(strings.Join(parts, " | "), 200),
		At:         now,
		EventCount: len(recent),
		Dominant:   m.dominant(session, m.cfg.BriefSnapshots),
	}
	session.briefsSinceSummary++
}

// shouldSummarize: never before the minimum snapshot count; then first
// summary, summary too old, or enough brief refreshes since the last summary.
func (m *ContextManager) shouldSummarize(session *contextSession, now time.Time) bool {
	if len(session.snapshots) < m.cfg.SummarySnapshots {
		return false
	}
	if len(session.summaries) == 0 {
		return true
	}
	last := session.summaries[len(session.summaries)-1]
	if now.Sub(last.At) > m.cfg.SummaryMaxAge {
		return true
	}
	return session.briefsSinceSummary >= m.cfg.SummaryBriefs
}

func (m *ContextManager) summarize(session *contextSession, now time.Time) LongSummary {
	recent := tail(session.snapshots, m.cfg.SummarySnapshots)
	parts := make([]string, len(recent))
	for i, s := range recent {
		parts[i] = s.Content
	}

	journey := make([]emotion.Code, 0, m.cfg.SummarySnapshots)
	for _, p := range tailPoints(session.timeline, m.cfg.SummarySnapshots) {
		journey = append(journey, p.code)
	}

	var duration time.Duration
	if len(session.timeline) > 0 {
		duration = now.Sub(session.timeline[0].at)
	}

	dominant := m.dominant(session, m.cfg.SummarySnapshots)
	summary := LongSummary{
		Content: fmt.Sprintf("Session summary (%s): %s",
			now.Format("15:04"), truncate(strings.Join(parts, " | "), 300)),
		At:          now,
		Duration:    duration,
		Journey:     journey,
		KeyInsights: []string{fmt.Sprintf("dominant emotion: %s", emotion.Name(dominant))},
	}
	session.summaries = append(session.summaries, summary)
	session.briefsSinceSummary = 0
	return summary
}

// dominant returns the mode over the last n timeline entries; ties keep the
// code that reached the maximum first.
func (m *ContextManager) dominant(session *contextSession, n int) emotion.Code {
	points := tailPoints(session.timeline, n)
	if len(points) == 0 {
		return emotion.Neutral
	}

	counts := make(map[emotion.Code]int)
	best := emotion.Neutral
	max := 0
	for _, p := range points {
		counts[p.code]++
		if counts[p.code] > max {
			max = counts[p.code]
			best = p.code
		}
	}
	return best
}

// ReplyContext returns the lightweight per-message context for reply
// generation. Recent messages are filled in by the orchestrator.
func (m *ContextManager) ReplyContext(userID types.UserID, hint, insight string) types.ReplyContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc := types.ReplyContext{
		Brief:   "Conversation just started.",
		Emotion: emotion.Neutral,
		Hint:    hint,
		Insight: insight,
	}

	session, ok := m.sessions[userID]
	if !ok {
		return rc
	}
	if session.brief != nil {
		rc.Brief = session.brief.Content
	}
	if n := len(session.timeline); n > 0 {
		rc.Emotion = session.timeline[n-1].code
	}
	return rc
}

// DeepContext builds the compact narrative bundle for the deep-analysis
// pass: the full history, the emotional timeline with message texts, and a
// detailed snapshot of dominant emotions plus change points.
func (m *ContextManager) DeepContext(userID types.UserID, messages []types.Message, metrics types.SessionMetrics) types.DeepContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	dc := types.DeepContext{
		FullHistory: messages,
		Metrics:     metrics,
	}

	session, ok := m.sessions[userID]
	if !ok {
		return dc
	}

	byID := make(map[types.MessageID]string, len(messages))
	for _, msg := range messages {
		byID[msg.ID] = msg.Content
	}

	dc.Timeline = make([]types.TimelinePoint, len(session.timeline))
	for i, p := range session.timeline {
		dc.Timeline[i] = types.TimelinePoint{
			At:         p.at,
			Code:       p.code,
			Confidence: p.confidence,
			Message:    byID[p.messageID],
		}
	}
	dc.Snapshot = m.detailedSnapshot(session)
	return dc
}

// detailedSnapshot keeps the deep pass information-dense without shipping
// the raw unbounded history: top-3 emotions by frequency, then the first,
// last, and emotion-change snapshots capped to the most recent 5.
func (m *ContextManager) detailedSnapshot(session *contextSession) string {
	var b strings.Builder
	b.WriteString("Session analysis:\n\n")

	counts := make(map[emotion.Code]int)
	for _, p := range session.timeline {
		counts[p.code]++
	}
	b.WriteString("Dominant emotions:\n")
	for _, code := range topCodes(counts, 3) {
		fmt.Fprintf(&b, "- %s (%s): %d times\n", emotion.Name(code), code, counts[code])
	}

	b.WriteString("\nKey moments:\n")
	var significant []Snapshot
	for i, s := range session.snapshots {
		if i == 0 || i == len(session.snapshots)-1 || s.Code != session.snapshots[i-1].Code {
			significant = append(significant, s)
		}
	}
	for _, s := range tail(significant, 5) {
		fmt.Fprintf(&b, "[%s, %s] %s\n", s.At.Format("15:04"), emotion.Name(s.Code), s.Content)
	}

	if session.brief != nil {
		b.WriteString("\nCurrent brief:\n")
		b.WriteString(session.brief.Content)
	}
	return b.String()
}

// RequestLongSummary returns the latest summary if it is still fresh,
// otherwise forces a new one.
func (m *ContextManager) RequestLongSummary(userID types.UserID) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return "Not enough data for a summary yet."
	}

	now := m.now()
	if n := len(session.summaries); n > 0 {
		last := session.summaries[n-1]
		if now.Sub(last.At) < m.cfg.SummaryFreshFor {
			return last.Content
		}
	}
	return m.summarize(session, now).Content
}

// Cleanup evicts users untouched beyond maxAge.
func (m *ContextManager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for userID, session := range m.sessions {
		if now.Sub(session.lastUpdated) > maxAge {
			delete(m.sessions, userID)
		}
	}
}

func tail(s []Snapshot, n int) []Snapshot {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func tailPoints(s []timelinePoint, n int) []timelinePoint {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// truncate cuts on a rune boundary so multi-byte text survives intact.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// topCodes ranks codes by count descending, iterating in taxonomy order so
// ties resolve stably.
func topCodes(counts map[emotion.Code]int, n int) []emotion.Code {
	var ranked []emotion.Code
	for _, code := range emotion.All {
		if counts[code] > 0 {
			ranked = append(ranked, code)
		}
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && counts[ranked[j]] > counts[ranked[j-1]]; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
