package recommendation

import (
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

// ComputeAssignedClients returns explicit followed by every client of
// subscriptionID, without duplicates. Explicit ids keep their order and
// members follow client order.
func ComputeAssignedClients(subscriptionID string, explicit []string, allClients []models.Client) []string {
	seen := make(map[string]bool, len(explicit)+len(allClients))
	out := make([]string, 0, len(explicit))

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range explicit {
		add(id)
	}
	for _, c := range allClients {
		if c.SubscriptionID == subscriptionID {
			add(c.ID)
		}
	}
	return out
}

// AssignAcross folds ComputeAssignedClients over several subscriptions.
func AssignAcross(subscriptionIDs []string, explicit []string, allClients []models.Client) []string {
	assigned := ComputeAssignedClients("", explicit, nil)
	for _, sub := range subscriptionIDs {
		assigned = ComputeAssignedClients(sub, assigned, allClients)
	}
	return assigned
}

// Acknowledge records actorID on rec. It reports whether anything changed:
// unassigned actors and repeat acknowledgments leave rec untouched.
func Acknowledge(rec *models.Recommendation, actorID string) bool {
	if !rec.IsAssigned(actorID) || rec.IsAcknowledgedBy(actorID) {
		return false
	}
	rec.ClientsAcknowledged = append(rec.ClientsAcknowledged, actorID)
	return true
}

// VisibleTo reports whether actor may see rec. Every admin sees every
// recommendation; a client sees only those assigned to it.
func VisibleTo(rec *models.Recommendation, actor *models.User) bool {
	switch {
	case actor == nil:
		return false
	case actor.IsAdmin():
		return true
	default:
		return rec.IsAssigned(actor.ID)
	}
}

// Counts is a client's recommendation tally.
type Counts struct {
	Assigned     int
	Acknowledged int
}

// CountByClient derives per-client counters from recs.
func CountByClient(recs []models.Recommendation) map[string]Counts {
	out := make(map[string]Counts)
	for _, rec := range recs {
		for _, id := range rec.ClientsAssigned {
			c := out[id]
			c.Assigned++
			out[id] = c
		}
		for _, id := range rec.ClientsAcknowledged {
			c := out[id]
			c.Acknowledged++
			out[id] = c
		}
	}
	return out
}

// LabelTargets fills missing timeframes by position.
func LabelTargets(targets []models.Target) {
	for i := range targets {
		if targets[i].Timeframe != "" {
			continue
		}
		idx := i
		if idx >= len(models.Timeframes) {
			idx = len(models.Timeframes) - 1
		}
		targets[i].Timeframe = models.Timeframes[idx]
	}
}

// keepAcknowledged appends to assigned every acknowledged client it
// lacks, keeping clientsAcknowledged a subset of clientsAssigned.
func keepAcknowledged(assigned, acked []string) []string {
	return ComputeAssignedClients("", append(assigned, acked...), nil)
}
