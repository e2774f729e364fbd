package statistics

import (
	"context"

	"go.uber.org/zap"

	"meta-relay/internal/models"
	"meta-relay/internal/repository"
)

var (
	channels = []models.Channel{models.ChannelWhatsApp, models.ChannelMessenger}
	statuses = []models.MessageStatus{
		models.MessageStatusPending,
		models.MessageStatusSent,
		models.MessageStatusDelivered,
		models.MessageStatusRead,
		models.MessageStatusFailed,
	}
)

type Service struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	logger           *zap.Logger
}

type GlobalStatistics struct {
	TotalConversations int64                `json:"totalConversations"`
	TotalInbound       int64                `json:"totalInbound"`
	TotalOutbound      int64                `json:"totalOutbound"`
	Channels           []*ChannelStatistics `json:"channels"`
}

type ChannelStatistics struct {
	Channel           models.Channel                 `json:"channel"`
	ConversationCount int64                          `json:"conversationCount"`
	InboundCount      int64                          `json:"inboundCount"`
	OutboundCount     int64                          `json:"outboundCount"`
	ByStatus          map[models.MessageStatus]int64 `json:"byStatus"`
}

func NewService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		logger:           logger,
	}
}

// GetGlobalStatistics sums every channel. A channel that fails to count is
// logged and left out rather than failing the whole report.
func (s *Service) GetGlobalStatistics(ctx context.Context) (*GlobalStatistics, error) {
	global := &GlobalStatistics{}

	for _, channel := range channels {
		stats, err := s.GetChannelStatistics(ctx, channel)
		if err != nil {
			s.logger.Warn("Failed to collect channel statistics",
				zap.String("channel", string(channel)),
				zap.Error(err))
			continue
		}

		global.TotalConversations += stats.ConversationCount
		global.TotalInbound += stats.InboundCount
		global.TotalOutbound += stats.OutboundCount
		global.Channels = append(global.Channels, stats)
	}

	return global, nil
}

func (s *Service) GetChannelStatistics(ctx context.Context, channel models.Channel) (*ChannelStatistics, error) {
	conversations, err := s.conversationRepo.CountByChannel(ctx, channel)
	if err != nil {
		return nil, err
	}

	inbound, err := s.messageRepo.CountByChannelAndDirection(ctx, channel, models.MessageDirectionInbound)
	if err != nil {
		return nil, err
	}

	outbound, err := s.messageRepo.CountByChannelAndDirection(ctx, channel, models.MessageDirectionOutbound)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[models.MessageStatus]int64, len(statuses))
	for _, status := range statuses {
		count, err := s.messageRepo.CountByChannelAndStatus(ctx, channel, status)
		if err != nil {
			s.logger.Warn("Failed to count messages by status",
				zap.String("channel", string(channel)),
				zap.String("status", string(status)),
				zap.Error(err))
			continue
		}
		byStatus[status] = count
	}

	return &ChannelStatistics{
		Channel:           channel,
		ConversationCount: conversations,
		InboundCount:      inbound,
		OutboundCount:     outbound,
		ByStatus:          byStatus,
	}, nil
}
