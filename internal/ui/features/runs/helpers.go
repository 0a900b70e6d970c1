package runs

import "github.com/leapstack-labs/leaplineage/internal/state"

func runStatusBadgeClass(status state.RunStatus) string {
	switch status {
	case state.RunStatusCompleted:
		return "run-status--completed"
	case state.RunStatusRunning:
		return "run-status--running"
	case state.RunStatusFailed:
		return "run-status--failed"
	default:
		return ""
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
