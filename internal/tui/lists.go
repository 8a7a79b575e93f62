package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/builddeck/internal/audit"
	"github.com/waabox/builddeck/internal/domain"
	"github.com/waabox/builddeck/internal/optimistic"
	"github.com/waabox/builddeck/internal/store"
)

// FindingListModel is an immutable model for the audit findings panel.
type FindingListModel struct {
	findings []audit.Finding
	cursor   int
}

// NewFindingListModel creates a findings model.
func NewFindingListModel(findings []audit.Finding) FindingListModel {
	return FindingListModel{findings: findings}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m FindingListModel) MoveDown() FindingListModel {
	if m.cursor < len(m.findings)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m FindingListModel) MoveUp() FindingListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// View renders the severity summary, the list and the selected finding's detail.
func (m FindingListModel) View() string {
	if len(m.findings) == 0 {
		return "No audit findings."
	}
	summary := audit.Summarize(m.findings)
	var counts []string
	for _, sev := range audit.Severities {
		counts = append(counts, severityStyle(sev).Render(fmt.Sprintf("%s %d", sev, summary[sev])))
	}

	var sb strings.Builder
	sb.WriteString(" " + strings.Join(counts, "  ") + "\n\n")
	for i, f := range m.findings {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%-10s %s\n", prefix, severityStyle(f.Severity).Render(string(f.Severity)), truncate(f.Title, 50)))
	}

	f := m.findings[m.cursor]
	sb.WriteString("\n")
	if f.Line > 0 {
		sb.WriteString(fmt.Sprintf(" Line %d\n", f.Line))
	}
	if f.Description != "" {
		sb.WriteString(" " + f.Description + "\n")
	}
	if f.Recommendation != "" {
		sb.WriteString(" Recommendation: " + f.Recommendation + "\n")
	}
	return sb.String()
}

// HistoryListModel is an immutable model for the local build history.
type HistoryListModel struct {
	records []store.HistoryRecord
	cursor  int
}

// NewHistoryListModel creates a history model.
func NewHistoryListModel(records []store.HistoryRecord) HistoryListModel {
	return HistoryListModel{records: records}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m HistoryListModel) MoveDown() HistoryListModel {
	if m.cursor < len(m.records)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m HistoryListModel) MoveUp() HistoryListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Selected returns the highlighted record.
func (m HistoryListModel) Selected() (store.HistoryRecord, bool) {
	if len(m.records) == 0 {
		return store.HistoryRecord{}, false
	}
	return m.records[m.cursor], true
}

// View renders the history list.
func (m HistoryListModel) View() string {
	if len(m.records) == 0 {
		return "No builds yet."
	}
	var sb strings.Builder
	for i, r := range m.records {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%s %-12s %-40s %s\n",
			prefix,
			statusIcon(r.Status),
			truncate(string(r.ID), 12),
			truncate(r.Prompt, 40),
			formatAge(r.Time),
		))
	}
	return sb.String()
}

// storeEntry pairs an app with its displayed like count.
type storeEntry struct {
	app   domain.StoreApp
	likes optimistic.Value[int]
}

// StoreListModel is an immutable model for the app store panel. Like counts
// are shown optimistically until the server answers.
type StoreListModel struct {
	entries []storeEntry
	cursor  int
}

// NewStoreListModel creates a store model from server data.
func NewStoreListModel(apps []domain.StoreApp) StoreListModel {
	entries := make([]storeEntry, len(apps))
	for i, a := range apps {
		entries[i] = storeEntry{app: a, likes: optimistic.New(a.Likes)}
	}
	return StoreListModel{entries: entries}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m StoreListModel) MoveDown() StoreListModel {
	if m.cursor < len(m.entries)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m StoreListModel) MoveUp() StoreListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Selected returns the highlighted app.
func (m StoreListModel) Selected() (domain.StoreApp, bool) {
	if len(m.entries) == 0 {
		return domain.StoreApp{}, false
	}
	return m.entries[m.cursor].app, true
}

// Likes returns the displayed like count of appID and whether it is unconfirmed.
func (m StoreListModel) Likes(appID string) (int, bool) {
	for _, e := range m.entries {
		if e.app.ID == appID {
			return e.likes.Get(), e.likes.Pending()
		}
	}
	return 0, false
}

// update returns a copy of m with fn applied to the entry for appID.
func (m StoreListModel) update(appID string, fn func(storeEntry) storeEntry) StoreListModel {
	entries := make([]storeEntry, len(m.entries))
	copy(entries, m.entries)
	for i, e := range entries {
		if e.app.ID == appID {
			entries[i] = fn(e)
		}
	}
	m.entries = entries
	return m
}

// Like shows one more like for appID before the server confirms it.
func (m StoreListModel) Like(appID string) StoreListModel {
	return m.update(appID, func(e storeEntry) storeEntry {
		e.likes = e.likes.Apply(func(n int) int { return n + 1 })
		return e
	})
}

// ConfirmLike replaces the displayed count with the server's.
func (m StoreListModel) ConfirmLike(appID string, likes int) StoreListModel {
	return m.update(appID, func(e storeEntry) storeEntry {
		e.likes = e.likes.Confirm(likes)
		return e
	})
}

// RollbackLike drops the unconfirmed like of appID.
func (m StoreListModel) RollbackLike(appID string) StoreListModel {
	return m.update(appID, func(e storeEntry) storeEntry {
		e.likes = e.likes.Rollback()
		return e
	})
}

// Installed records the server's install count for appID.
func (m StoreListModel) Installed(appID string, installs int) StoreListModel {
	return m.update(appID, func(e storeEntry) storeEntry {
		e.app.Installs = installs
		return e
	})
}

// View renders the app list.
func (m StoreListModel) View() string {
	if len(m.entries) == 0 {
		return "No apps in the store."
	}
	var sb strings.Builder
	for i, e := range m.entries {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		likes := fmt.Sprintf("♥ %d", e.likes.Get())
		if e.likes.Pending() {
			likes = dimStyle.Render(likes + "*")
		}
		sb.WriteString(fmt.Sprintf("%s%-30s %-12s %s  ⤓ %d\n",
			prefix,
			truncate(e.app.Title, 30),
			truncate(e.app.Category, 12),
			likes,
			e.app.Installs,
		))
	}
	return sb.String()
}
