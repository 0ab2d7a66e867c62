package complaint

import (
	"context"
	"sync"
)

// FeedbackEntry is one accepted (text, label) pair recorded for retraining.
type FeedbackEntry struct {
	Narrative   string
	Category    string
	SubCategory string
}

// Memory is an in-process Store for tests and development runs.
type Memory struct {
	mu       sync.Mutex
	seq      map[string]int64
	byNumber map[string]*FinalizedComplaint
	feedback []FeedbackEntry
}

func NewMemory() *Memory {
	return &Memory{
		seq:      make(map[string]int64),
		byNumber: make(map[string]*FinalizedComplaint),
	}
}

func (m *Memory) File(_ context.Context, rec *FinalizedComplaint, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		m.seq[code]++
		number := FormatNumber(code, m.seq[code])
		if _, taken := m.byNumber[number]; taken {
			continue
		}
		rec.Number = number
		m.byNumber[number] = copyRecord(rec)
		return nil
	}
}

func (m *Memory) Get(_ context.Context, number string) (*FinalizedComplaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byNumber[number]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *Memory) Feedback(_ context.Context, narrative, category, subCategory string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.feedback = append(m.feedback, FeedbackEntry{
		Narrative:   narrative,
		Category:    category,
		SubCategory: subCategory,
	})
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports how many complaints have been filed.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byNumber)
}

// Feedbacks returns a copy of the recorded training feedback.
func (m *Memory) Feedbacks() []FeedbackEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeedbackEntry, len(m.feedback))
	copy(out, m.feedback)
	return out
}

func copyRecord(rec *FinalizedComplaint) *FinalizedComplaint {
	cp := *rec
	cp.Fields = make(map[string]string, len(rec.Fields))
	for k, v := range rec.Fields {
		cp.Fields[k] = v
	}
	if rec.Attachment != nil {
		att := *rec.Attachment
		cp.Attachment = &att
	}
	return &cp
}
