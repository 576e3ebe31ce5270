package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/hostbus"
)

// auditWriteTimeout bounds a single audit insert.
const auditWriteTimeout = 5 * time.Second

// recordCommand writes the outcome of an API command to the audit trail.
// The request context is not used: a client hanging up after the command
// ran must not lose the entry.
func (s *Server) recordCommand(cmd hostbus.CommandMessage, start time.Time, cmdErr error) {
	if s.auditRepo == nil {
		return
	}

	entry := &audit.CommandLog{
		Accessory: s.acc.Name(),
		CommandID: cmd.ID,
		Command:   cmd.Command,
		Value:     string(cmd.Value),
		Source:    cmd.Source,
		Status:    string(hostbus.AckCompleted),
		Duration:  time.Since(start),
	}
	if cmdErr != nil {
		entry.Status = string(hostbus.AckFailed)
		entry.ErrorCode = hostbus.ErrorCode(cmdErr)
		entry.Error = cmdErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record command", "command_id", cmd.ID, "error", err)
	}
}

// handleListAudit returns paginated command history.
//
// Query parameters:
//   - accessory: filter by accessory name
//   - command: filter by command (set_power, set_key, ...)
//   - status: completed or failed
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Accessory: q.Get("accessory"),
		Command:   q.Get("command"),
		Status:    q.Get("status"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit trail", "error", err)
		writeInternalError(w, "failed to list audit trail")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
