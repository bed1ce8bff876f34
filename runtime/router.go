package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"secure-chat/contract"
	"secure-chat/domain"
	"secure-chat/repositories"

	"github.com/google/uuid"
)

// Router decides persistence and delivery for each decoded envelope.
// Persistence and delivery are independent side effects, not a transaction:
// a storage failure is logged but never blocks best-effort delivery, and a
// recipient being offline never fails the write.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	messages  repositories.IMessageRepository
	directory repositories.IDirectory
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository, directory repositories.IDirectory) *Router {
	return &Router{log: log, registry: registry, messages: messages, directory: directory}
}

// Process persists the envelope (when it carries a blob) and forwards the
// ORIGINAL raw frame to its recipients. It never returns an error to the
// session loop: every failure here is recoverable and must not take the
// sender's connection down.
func (r *Router) Process(ctx context.Context, envelope domain.Envelope, frame []byte) {
	if !envelope.Valid() {
		r.log.Warn("Dropping envelope with unroutable target",
			"sender_id", envelope.SenderID,
			"target", envelope.Target,
			"target_id", envelope.TargetID)
		return
	}

	// Routing already in flight must survive the sender hanging up:
	// persistence and fan-out run to completion on their own context.
	ctx = context.WithoutCancel(ctx)

	if envelope.Blob != "" {
		if err := r.messages.StoreMessage(toDiskMessage(envelope)); err != nil {
			r.log.Error("Message persistence failed, delivery still attempted",
				"sender_id", envelope.SenderID,
				"target", envelope.Target,
				"target_id", envelope.TargetID,
				"error", err)
		}
	}

	switch envelope.Target {
	case domain.TargetUser:
		r.registry.Send(ctx, envelope.TargetID, frame)
	case domain.TargetGroup:
		r.fanout(ctx, envelope, frame)
	}
}

// fanout forwards the frame to every group member except the sender.
// Each recipient is an independent unit of work: one absent or slow member
// never delays or fails delivery to the others.
func (r *Router) fanout(ctx context.Context, envelope domain.Envelope, frame []byte) {
	members, err := r.directory.GroupMembers(envelope.TargetID)
	if err != nil {
		r.log.Warn(fmt.Sprintf("Group %d cannot be resolved, delivery skipped", envelope.TargetID),
			"error", err)
		return
	}
	for _, memberID := range members {
		if memberID == envelope.SenderID {
			continue
		}
		go r.registry.Send(ctx, memberID, frame)
	}
}

func toDiskMessage(envelope domain.Envelope) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:        uuid.New(),
		SenderID:  envelope.SenderID,
		Target:    envelope.Target,
		TargetID:  envelope.TargetID,
		Blob:      envelope.Blob,
		Nonce:     envelope.Nonce,
		Algorithm: envelope.Algorithm,
		IsFile:    envelope.Content == domain.ContentFile,
		At:        time.Now().UTC(),
	}
}
