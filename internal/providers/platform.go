package providers

import (
	"fmt"

	"report-service/internal/logging"
	"report-service/internal/models"
)

// Pusher writes a message to every open session of a user and reports how many received it.
type Pusher interface {
	SendToUser(userID int64, message []byte) int
}

// SendPlatform notifies the user's open sessions about a new report.
// A user without open sessions is not an error.
func SendPlatform(task models.Task, pusher Pusher, logger *logging.Logger) error {
	if pusher == nil {
		return fmt.Errorf("platform push is not configured")
	}
	n := pusher.SendToUser(task.User.ID, []byte(PlatformMessage(task.Report)))
	logger.Debugf("Platform notice for report %s reached %d sessions of user %d", task.Report.ID, n, task.User.ID)
	return nil
}

func PlatformMessage(r models.Report) string {
	return "New report: " + r.Name
}
