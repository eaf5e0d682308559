// Package batch groups admitted notifications arriving within a quiet
// period into synthetic batch notifications, guided by a learned
// per-category preference.
package batch

import (
	"github.com/pulsedesk/notification-engine/internal/config"
	"github.com/pulsedesk/notification-engine/internal/domain"
)

// Affinity component weights. The pairwise score is their sum, capped
// at 1.0.
const (
	categoryWeight = 0.8
	entityWeight   = 0.6
	subtypeWeight  = 0.4
	arrivalWeight  = 0.3
)

// Affinity computes the pairwise similarity of two notifications.
func Affinity(a, b *domain.NotificationRequest) float64 {
	score := 0.0

	if a.Category == b.Category {
		score += categoryWeight
	}
	if a.Entity != "" && a.Entity == b.Entity {
		score += entityWeight
	}
	if a.Subtype != "" && a.Subtype == b.Subtype {
		score += subtypeWeight
	}

	gap := a.Timestamp.Sub(b.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap <= config.ArrivalAffinity {
		score += arrivalWeight
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// cluster greedily groups the buffered requests: each unclustered
// request seeds a group, pulling in any remaining request whose
// affinity with the seed exceeds the threshold. Arrival order is
// preserved within each group.
func cluster(items []*domain.NotificationRequest) [][]*domain.NotificationRequest {
	groups := make([][]*domain.NotificationRequest, 0, len(items))
	used := make([]bool, len(items))

	for i, seed := range items {
		if used[i] {
			continue
		}
		used[i] = true
		group := []*domain.NotificationRequest{seed}

		for j := i + 1; j < len(items); j++ {
			if used[j] {
				continue
			}
			if Affinity(seed, items[j]) > config.AffinityThreshold {
				used[j] = true
				group = append(group, items[j])
			}
		}

		groups = append(groups, group)
	}

	return groups
}

// meanAffinity averages the pairwise affinity over all pairs in a
// group. A single-item group has no pairs and scores zero.
func meanAffinity(group []*domain.NotificationRequest) float64 {
	if len(group) < 2 {
		return 0
	}

	total := 0.0
	pairs := 0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			total += Affinity(group[i], group[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

// maxUrgency returns the highest priority score in a group.
func maxUrgency(group []*domain.NotificationRequest) float64 {
	max := 0.0
	for _, req := range group {
		if s := req.Priority.Score(); s > max {
			max = s
		}
	}
	return max
}

// dominantCategory returns the most frequent category in a group, with
// ties going to the earliest arrival.
func dominantCategory(group []*domain.NotificationRequest) domain.Category {
	counts := make(map[domain.Category]int, len(group))
	best := group[0].Category
	for _, req := range group {
		counts[req.Category]++
		if counts[req.Category] > counts[best] {
			best = req.Category
		}
	}
	return best
}

// homogeneousCategory reports whether every request in the group shares
// one category.
func homogeneousCategory(group []*domain.NotificationRequest) bool {
	for _, req := range group[1:] {
		if req.Category != group[0].Category {
			return false
		}
	}
	return true
}
