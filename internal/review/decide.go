// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// LastTriggerTime returns the creation time of the newest comment containing trigger.
func LastTriggerTime(comments []Comment, trigger string) (time.Time, bool) {
	times := lo.FilterMap(comments, func(c Comment, _ int) (time.Time, bool) {
		if !strings.Contains(c.Body, trigger) {
			return time.Time{}, false
		}
		return parseTime(c.CreatedAt)
	})
	return latest(times)
}

// LatestCommitTime returns the newest commit date.
func LatestCommitTime(commits []Commit) (time.Time, bool) {
	times := lo.FilterMap(commits, func(c Commit, _ int) (time.Time, bool) {
		return parseTime(c.CommittedDate)
	})
	return latest(times)
}

// NeedsReview reports whether the PR needs a fresh trigger comment, and why.
func NeedsReview(d Details, trigger string) (bool, string) {
	lastReview, ok := LastTriggerTime(d.Comments, trigger)
	if !ok {
		return true, fmt.Sprintf("No '%s' comment found", trigger)
	}

	if latestCommit, ok := LatestCommitTime(d.Commits); ok && latestCommit.After(lastReview) {
		return true, "New commits after last review"
	}

	return false, "Already reviewed, no new commits"
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func latest(times []time.Time) (time.Time, bool) {
	if len(times) == 0 {
		return time.Time{}, false
	}
	return lo.MaxBy(times, func(a, b time.Time) bool { return a.After(b) }), true
}
