package requeue

import "github.com/wadesk/wadesk/internal/models"

// Decide is the routing decision table for one orphaned ticket: given the
// company's default queue and that queue's optional channel binding, it
// returns the ticket fields to apply. Pure; the I/O that fetches queue and
// binding lives in the scheduler. A nil queue means the ticket cannot be
// routed and nothing should change.
func Decide(queue *models.Queue, binding *models.ChannelQueue) map[string]interface{} {
	if queue == nil {
		return nil
	}
	fields := map[string]interface{}{
		"status":   models.TicketPending,
		"queue_id": queue.ID,
		"chatbot":  false,
	}
	if binding != nil {
		fields["channel_id"] = binding.ChannelID
	}
	return fields
}
