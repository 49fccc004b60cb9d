package domain

import "time"

// TopicHistoryLimit caps the number of topics remembered per category.
const TopicHistoryLimit = 20

// MergeTopic returns the history list after recording topic.
// A new topic goes to the front; a topic already present keeps its position.
// The result never exceeds limit entries.
func MergeTopic(recent []string, topic string, limit int) []string {
	if limit <= 0 {
		limit = TopicHistoryLimit
	}

	merged := make([]string, 0, len(recent)+1)
	present := false
	for _, t := range recent {
		if t == topic {
			present = true
			break
		}
	}
	if !present && topic != "" {
		merged = append(merged, topic)
	}

	seen := make(map[string]struct{}, len(recent))
	for _, t := range recent {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Record applies MergeTopic to the record and stamps it.
func (r *TopicHistoryRecord) Record(topic string, limit int, now time.Time) {
	r.RecentTopics = MergeTopic(r.RecentTopics, topic, limit)
	r.UpdatedAt = now
}
