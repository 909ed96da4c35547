// Package bridge orchestrates the core operations: web sends, bot
// replies, outbound claims and status transitions. Handlers stay thin;
// all validation, identity resolution and atomicity discipline lives here.
package bridge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fvnks/konecte-chatbridge/internal/fanout"
	"github.com/fvnks/konecte-chatbridge/internal/identity"
	"github.com/fvnks/konecte-chatbridge/internal/metrics"
	"github.com/fvnks/konecte-chatbridge/internal/models"
	"github.com/fvnks/konecte-chatbridge/internal/store"
)

// DefaultNotifyTimeout bounds the best-effort fan-out call.
const DefaultNotifyTimeout = 3 * time.Second

// Service wires the store, the identity resolver and the notifier.
type Service struct {
	db            store.DataStore
	ids           identity.Resolver
	notifier      fanout.Notifier
	notifyTimeout time.Duration
	logger        zerolog.Logger
}

// New creates the bridge service. notifyTimeout <= 0 uses the default.
func New(db store.DataStore, ids identity.Resolver, notifier fanout.Notifier, notifyTimeout time.Duration, logger zerolog.Logger) *Service {
	if notifyTimeout <= 0 {
		notifyTimeout = DefaultNotifyTimeout
	}
	return &Service{
		db:            db,
		ids:           ids,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

// SendInput is a web user's send request.
type SendInput struct {
	TargetChannelAddress string
	OriginUserID         string
	OriginPhone          string
	Text                 string
}

// SendFromWeb validates the send, resolves the sender's identity and
// appends the message and its outbound twin as one atomic unit. The
// conversation is keyed by the sender's own phone, which is also where
// the bot's reply will land.
func (s *Service) SendFromWeb(ctx context.Context, in SendInput) (*models.Message, *models.PendingOutboundMessage, error) {
	switch {
	case in.TargetChannelAddress == "":
		return nil, nil, validationf("target_channel_address is required")
	case in.OriginUserID == "":
		return nil, nil, validationf("origin_user_id is required")
	case in.OriginPhone == "":
		return nil, nil, validationf("origin_phone is required")
	case in.Text == "":
		return nil, nil, validationf("text is required")
	}

	// Resolution happens before any mutation and outside any store lock.
	phone, err := s.ids.ResolveUserPhone(ctx, in.OriginUserID)
	if err != nil {
		return nil, nil, err
	}
	if phone != in.OriginPhone {
		return nil, nil, validationf("origin_phone does not match user %s", in.OriginUserID)
	}

	msg := &models.Message{
		ConversationKey: in.OriginPhone,
		SenderRole:      models.SenderUser,
		SenderID:        in.OriginUserID,
		Text:            in.Text,
		Status:          models.StatusPendingToChannel,
	}
	out := &models.PendingOutboundMessage{
		TargetChannelAddress: in.TargetChannelAddress,
		OriginUserID:         in.OriginUserID,
		OriginPhone:          in.OriginPhone,
		Text:                 in.Text,
	}

	msg, out, err = s.db.AppendWithOutbound(ctx, msg, out)
	if err != nil {
		return nil, nil, err
	}

	metrics.MessagesAppended.WithLabelValues("web").Inc()
	metrics.OutboundEnqueued.Inc()
	s.logger.Info().
		Str("message_id", msg.ID).
		Str("outbound_id", out.ID.String()).
		Str("conversation_key", msg.ConversationKey).
		Msg("web send queued")
	return msg, out, nil
}

// IngestBotReply appends a channel-originated reply to the user's
// conversation and fans it out. The reply arrives already delivered, so
// it is born in delivered_to_user; fan-out failure never fails the append.
func (s *Service) IngestBotReply(ctx context.Context, userID, text string) (*models.Message, error) {
	switch {
	case userID == "":
		return nil, validationf("user_id is required")
	case text == "":
		return nil, validationf("text is required")
	}

	phone, err := s.ids.ResolveUserPhone(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationKey: phone,
		SenderRole:      models.SenderBot,
		SenderID:        models.BotSenderID,
		Text:            text,
		Status:          models.StatusDeliveredToUser,
	}

	msg, err = s.db.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues("channel").Inc()

	s.notifyBestEffort(userID, msg)
	return msg, nil
}

// notifyBestEffort pushes msg to the user's sessions with a bounded
// timeout. Failures are logged and counted, never propagated: the pull
// path makes the message visible regardless.
func (s *Service) notifyBestEffort(userID string, msg *models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		metrics.NotifyDropped.Inc()
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("message_id", msg.ID).
			Msg("fanout notify failed, client will recover on next fetch")
	}
}

// Conversation returns the full ordered thread for a conversation key.
// limit <= 0 returns everything.
func (s *Service) Conversation(ctx context.Context, conversationKey string, limit int) ([]models.Message, error) {
	if conversationKey == "" {
		return nil, validationf("conversation_key is required")
	}
	return s.db.ListMessages(ctx, conversationKey, limit)
}

// ClaimOutboundFor hands the channel agent every unclaimed entry for its
// address in one atomic claim.
func (s *Service) ClaimOutboundFor(ctx context.Context, targetAddress string) ([]models.PendingOutboundMessage, error) {
	if targetAddress == "" {
		return nil, validationf("target_address is required")
	}
	claimed, err := s.db.ClaimOutboundFor(ctx, targetAddress)
	if err != nil {
		return nil, err
	}
	metrics.OutboundClaimed.Add(float64(len(claimed)))
	return claimed, nil
}

// ClaimOutboundByID claims a single queue entry; a lost race surfaces as
// store.ErrAlreadyClaimed.
func (s *Service) ClaimOutboundByID(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	claimed, err := s.db.ClaimOutbound(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.OutboundClaimed.Inc()
	return claimed, nil
}

// Transition moves a message's status forward. Illegal moves are rejected
// with store.ErrConflict before touching the store; a concurrent transition
// that wins the race surfaces the same way.
func (s *Service) Transition(ctx context.Context, messageID string, to models.MessageStatus) (*models.Message, error) {
	if !to.Valid() {
		return nil, validationf("unknown status %q", to)
	}

	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(msg.Status, to) {
		return nil, store.ErrConflict
	}
	if err := s.db.UpdateMessageStatus(ctx, messageID, msg.Status, to); err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	msg.Status = to
	return msg, nil
}
